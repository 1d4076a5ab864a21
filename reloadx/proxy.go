package reloadx

import (
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/molt-dev/molt/buildx"
	"github.com/molt-dev/molt/core/errors"
	"github.com/molt-dev/molt/core/log"
	"github.com/molt-dev/molt/treex"
)

// Proxy is the externally visible handle over a configuration-built
// instance of interface T. The handle returned by Handle is stable for
// the proxy's lifetime; the backing instance is rebuilt and swapped
// atomically when the configuration subtree changes.
//
// Forwarded calls read the current-instance pointer and never take the
// reload lock, so an in-flight call sees either the fully-old or the
// fully-new instance, never a partially constructed one.
type Proxy[T any] struct {
	node    treex.Node
	builder *buildx.Builder
	logger  log.Logger

	// Build context for default-type table lookups.
	declaring reflect.Type
	member    string

	gate    *Gate
	current atomic.Pointer[instanceBox[T]]
	handle  T
	cancel  func()

	mu           sync.Mutex
	closed       bool
	attachments  []func(T)
	reloadingFns []func()
	reloadedFns  []func()
	errorFns     []func(error)
}

type instanceBox[T any] struct {
	v T
}

// ProxyOption configures a Proxy.
type ProxyOption[T any] func(*Proxy[T])

// WithLogger sets the logger for reload diagnostics.
func WithLogger[T any](l log.Logger) ProxyOption[T] {
	return func(p *Proxy[T]) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithBuildContext scopes the proxy's builds to a declaring type and
// member name, mirroring how the value would be built as a nested
// member.
func WithBuildContext[T any](declaring reflect.Type, member string) ProxyOption[T] {
	return func(p *Proxy[T]) {
		p.declaring = declaring
		p.member = member
	}
}

// NewProxy eagerly builds the first instance of T from the node and
// subscribes to the node's change notification. The forge must carry an
// adapter for T; targets that are not interfaces or that are bare
// sequence capabilities are rejected.
func NewProxy[T any](node treex.Node, builder *buildx.Builder, forge *Forge, opts ...ProxyOption[T]) (*Proxy[T], error) {
	if node == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "node is required")
	}
	if builder == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "builder is required")
	}
	if forge == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "forge is required")
	}

	adapt, err := adapterFor[T](forge)
	if err != nil {
		return nil, err
	}

	p := &Proxy[T]{
		node:    node,
		builder: builder,
		logger:  log.Nop(),
		gate:    NewGate(node),
	}
	for _, opt := range opts {
		opt(p)
	}

	first, err := p.build()
	if err != nil {
		return nil, err
	}
	p.current.Store(&instanceBox[T]{v: first})
	p.handle = adapt(p.currentInstance)

	// The notification callback runs on the delivering goroutine and
	// must not block the source; reload failures keep the previous
	// instance published and are reported through OnError.
	p.cancel = node.Subscribe(func() {
		_ = p.Reload(false)
	})
	return p, nil
}

// Handle returns the stable forwarding handle.
func (p *Proxy[T]) Handle() T {
	return p.handle
}

// Reload rebuilds the backing instance if the configuration subtree
// changed, or unconditionally when forced. Concurrent reload attempts
// on the same proxy are serialized.
func (p *Proxy[T]) Reload(force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New(errors.CodeInvalidArgument, "proxy is closed")
	}

	digest, rebuild := p.gate.ShouldRebuild(force)
	if !rebuild {
		return nil
	}

	for _, fn := range p.reloadingFns {
		fn()
	}

	fresh, err := p.build()
	if err != nil {
		p.logger.Error(err, "rebuild failed, previous instance retained", log.Str("path", p.node.Path()))
		for _, fn := range p.errorFns {
			fn(err)
		}
		return err
	}

	old := p.current.Load()
	for _, attach := range p.attachments {
		attach(fresh)
	}
	transferState(any(old.v), any(fresh))

	p.current.Store(&instanceBox[T]{v: fresh})
	p.gate.Commit(digest)
	p.release(old.v)

	for _, fn := range p.reloadedFns {
		fn()
	}
	p.logger.Debug("instance reloaded", log.Str("path", p.node.Path()))
	return nil
}

// OnReloading registers fn to run immediately before each swap.
// Callbacks run under the reload lock and must not call back into the
// proxy.
func (p *Proxy[T]) OnReloading(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloadingFns = append(p.reloadingFns, fn)
}

// OnReloaded registers fn to run immediately after each swap.
func (p *Proxy[T]) OnReloaded(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloadedFns = append(p.reloadedFns, fn)
}

// OnError registers fn to run when a rebuild fails.
func (p *Proxy[T]) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorFns = append(p.errorFns, fn)
}

// Attach registers runtime state against the proxied value: fn runs
// against the current instance now and is replayed against every
// replacement instance before it is published. This is how caller-held
// subscriptions survive reloads.
func (p *Proxy[T]) Attach(fn func(T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attachments = append(p.attachments, fn)
	if box := p.current.Load(); box != nil {
		fn(box.v)
	}
}

// Close cancels the change subscription and releases the current
// instance. The handle must not be used afterwards.
func (p *Proxy[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	if box := p.current.Load(); box != nil {
		if closer, ok := any(box.v).(io.Closer); ok {
			return closer.Close()
		}
	}
	return nil
}

// currentInstance is the getter captured by the forwarding adapter.
func (p *Proxy[T]) currentInstance() T {
	return p.current.Load().v
}

func (p *Proxy[T]) build() (T, error) {
	var zero T
	v, err := p.builder.BuildMember(p.node, buildx.TypeOf[T](), p.declaring, p.member)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Newf(errors.CodeInternal, "built %T, want %s", v, buildx.TypeOf[T]())
	}
	return typed, nil
}

// release disposes a replaced instance. Disposal failures are reported
// but never fail the reload.
func (p *Proxy[T]) release(old T) {
	closer, ok := any(old).(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		p.logger.Error(err, "failed to close replaced instance", log.Str("path", p.node.Path()))
	}
}
