package reloadx

import (
	"github.com/cespare/xxhash/v2"

	"github.com/molt-dev/molt/treex"
)

// Digest computes a content digest of a configuration subtree: a
// deterministic pre-order traversal feeding each node's path and scalar
// value into a 64-bit xxhash. The digest is used only for equality, so
// cryptographic strength is deliberately not required.
func Digest(n treex.Node) uint64 {
	d := xxhash.New()
	digestWalk(d, n)
	return d.Sum64()
}

func digestWalk(d *xxhash.Digest, n treex.Node) {
	_, _ = d.WriteString(n.Path())
	_, _ = d.Write([]byte{0})
	if v, ok := n.Value(); ok {
		_, _ = d.WriteString(v)
	}
	_, _ = d.Write([]byte{'\n'})
	for _, c := range n.Children() {
		digestWalk(d, c)
	}
}

// Gate decides whether a change notification warrants a rebuild. It
// holds the digest of the subtree the current instance was built from.
// Gate is not goroutine-safe on its own; the owning proxy serializes
// access under its reload lock.
type Gate struct {
	node   treex.Node
	digest uint64
}

// NewGate creates a gate over a subtree, capturing its current digest.
func NewGate(node treex.Node) *Gate {
	return &Gate{
		node:   node,
		digest: Digest(node),
	}
}

// ShouldRebuild reports whether a rebuild is warranted, returning the
// fresh digest to commit after a successful swap. Without force, a
// rebuild is suppressed when the node opts out via reloadOnChange or
// when the digest is unchanged.
func (g *Gate) ShouldRebuild(force bool) (uint64, bool) {
	if !force && treex.ReloadDisabled(g.node) {
		return g.digest, false
	}
	fresh := Digest(g.node)
	if !force && fresh == g.digest {
		return fresh, false
	}
	return fresh, true
}

// Commit records the digest of the subtree the newly published instance
// was built from.
func (g *Gate) Commit(digest uint64) {
	g.digest = digest
}
