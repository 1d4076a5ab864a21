package treex

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MapNode is an in-memory mutable configuration tree. It implements Node
// and supports incremental edits with subtree-change notification, which
// makes it the reference source for tests and for applications that
// manage configuration programmatically.
type MapNode struct {
	tree *treeState

	name   string
	path   string
	parent *MapNode

	value    string
	hasValue bool

	children []*MapNode
	index    map[string]*MapNode

	subs    map[int]func()
	nextSub int
}

// treeState is shared by every node of one tree. A single lock keeps
// structural edits and notification collection consistent.
type treeState struct {
	mu sync.RWMutex
}

// NewTree creates an empty tree and returns its root.
func NewTree() *MapNode {
	return &MapNode{
		tree:  &treeState{},
		index: map[string]*MapNode{},
		subs:  map[int]func(){},
	}
}

// FromMap builds a tree from nested maps, slices, and scalars, such as
// the output of a YAML, TOML, or JSON unmarshal. Slice elements become
// children named by their index.
func FromMap(data map[string]any) *MapNode {
	root := NewTree()
	root.Apply(data)
	return root
}

// Name returns the node's own key, empty for the root.
func (n *MapNode) Name() string { return n.name }

// Path returns the full slash-separated path from the root.
func (n *MapNode) Path() string { return n.path }

// Value returns the node's scalar value, if any.
func (n *MapNode) Value() (string, bool) {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	return n.value, n.hasValue
}

// Children returns the node's children in declaration order.
func (n *MapNode) Children() []Node {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Child returns the child with the given name, matched case-insensitively.
func (n *MapNode) Child(name string) (Node, bool) {
	n.tree.mu.RLock()
	defer n.tree.mu.RUnlock()
	c, ok := n.index[lower(name)]
	if !ok {
		return nil, false
	}
	return c, true
}

// Subscribe registers fn to run whenever this node's subtree changes.
func (n *MapNode) Subscribe(fn func()) (cancel func()) {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	return func() {
		n.tree.mu.Lock()
		defer n.tree.mu.Unlock()
		delete(n.subs, id)
	}
}

// EnsureChild returns the named child, creating it if absent.
func (n *MapNode) EnsureChild(name string) *MapNode {
	n.tree.mu.Lock()
	c := n.ensureChildLocked(name)
	n.tree.mu.Unlock()
	return c
}

// SetValue sets the node's scalar value and notifies subscribers.
func (n *MapNode) SetValue(v string) {
	n.tree.mu.Lock()
	n.value = v
	n.hasValue = true
	fns := n.collectUpLocked()
	n.tree.mu.Unlock()
	run(fns)
}

// ClearValue removes the node's scalar value and notifies subscribers.
func (n *MapNode) ClearValue() {
	n.tree.mu.Lock()
	n.value = ""
	n.hasValue = false
	fns := n.collectUpLocked()
	n.tree.mu.Unlock()
	run(fns)
}

// Set creates or updates the scalar at a slash-separated path below this
// node, creating intermediate nodes as needed, and notifies subscribers.
func (n *MapNode) Set(path, value string) {
	n.tree.mu.Lock()
	cur := n
	for _, seg := range splitPath(path) {
		cur = cur.ensureChildLocked(seg)
	}
	cur.value = value
	cur.hasValue = true
	fns := cur.collectUpLocked()
	n.tree.mu.Unlock()
	run(fns)
}

// Delete removes the named child and its subtree and notifies
// subscribers. It reports whether the child existed.
func (n *MapNode) Delete(name string) bool {
	n.tree.mu.Lock()
	key := lower(name)
	c, ok := n.index[key]
	if !ok {
		n.tree.mu.Unlock()
		return false
	}
	delete(n.index, key)
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	fns := n.collectUpLocked()
	n.tree.mu.Unlock()
	run(fns)
	return true
}

// Apply replaces this node's subtree with the given nested data,
// merging in place so that existing nodes (and their subscriptions)
// survive. Every subscription within the subtree and on ancestors is
// notified once; consumers deduplicate no-op edits downstream.
func (n *MapNode) Apply(data map[string]any) {
	n.tree.mu.Lock()
	n.applyLocked(data)
	fns := n.collectDownLocked()
	for p := n.parent; p != nil; p = p.parent {
		for _, fn := range p.subs {
			fns = append(fns, fn)
		}
	}
	n.tree.mu.Unlock()
	run(fns)
}

func (n *MapNode) ensureChildLocked(name string) *MapNode {
	key := lower(name)
	if c, ok := n.index[key]; ok {
		return c
	}
	path := name
	if n.path != "" {
		path = n.path + Separator + name
	}
	c := &MapNode{
		tree:   n.tree,
		name:   name,
		path:   path,
		parent: n,
		index:  map[string]*MapNode{},
		subs:   map[int]func(){},
	}
	n.children = append(n.children, c)
	n.index[key] = c
	return c
}

func (n *MapNode) applyLocked(data map[string]any) {
	keep := make(map[string]bool, len(data))
	for _, name := range orderedKeys(data) {
		keep[lower(name)] = true
		child := n.ensureChildLocked(name)
		child.applyAnyLocked(data[name])
	}
	n.hasValue = false
	n.value = ""
	n.pruneLocked(keep)
}

func (n *MapNode) applyAnyLocked(v any) {
	switch val := v.(type) {
	case map[string]any:
		n.applyLocked(val)
	case map[any]any:
		converted := make(map[string]any, len(val))
		for k, item := range val {
			converted[fmt.Sprint(k)] = item
		}
		n.applyLocked(converted)
	case []any:
		keep := make(map[string]bool, len(val))
		for i, item := range val {
			name := strconv.Itoa(i)
			keep[name] = true
			child := n.ensureChildLocked(name)
			child.applyAnyLocked(item)
		}
		n.hasValue = false
		n.value = ""
		n.pruneLocked(keep)
	case nil:
		n.hasValue = false
		n.value = ""
		n.pruneLocked(nil)
	default:
		n.value = scalarString(val)
		n.hasValue = true
		n.pruneLocked(nil)
	}
}

func (n *MapNode) pruneLocked(keep map[string]bool) {
	if len(n.children) == 0 {
		return
	}
	kept := n.children[:0]
	for _, c := range n.children {
		if keep[lower(c.name)] {
			kept = append(kept, c)
			continue
		}
		delete(n.index, lower(c.name))
	}
	n.children = kept
}

// collectUpLocked gathers subscriptions of this node and every ancestor.
func (n *MapNode) collectUpLocked() []func() {
	var fns []func()
	for cur := n; cur != nil; cur = cur.parent {
		for _, fn := range cur.subs {
			fns = append(fns, fn)
		}
	}
	return fns
}

// collectDownLocked gathers subscriptions of this node and every descendant.
func (n *MapNode) collectDownLocked() []func() {
	var fns []func()
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	for _, c := range n.children {
		fns = append(fns, c.collectDownLocked()...)
	}
	return fns
}

func run(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

func splitPath(path string) []string {
	parts := strings.Split(path, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

// orderedKeys returns map keys sorted for deterministic child order.
// Go maps are unordered; stable child order keeps digests and binding
// deterministic across loads.
func orderedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
