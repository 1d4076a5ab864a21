// Package treex defines the hierarchical configuration tree consumed by molt.
//
// Overview:
//   - Responsibility: Define the Node contract, well-known keys, and tree sources
//   - Key Types: Node interface, MapNode mutable tree, FileTree file-backed source
//   - Concurrency Model: MapNode is safe for concurrent use; subscriptions fire on the mutating goroutine
//   - Error Semantics: Sources return errors for load and parse failures
//   - Performance Notes: Child lookup is case-insensitive via a lowercased index
//
// The tree itself is owned by whatever produces it (a file, a test, an
// embedding application); molt only reads nodes and holds subscription
// cancel functions. A subtree-change subscription fires at least once per
// logical change and may fire for no-op edits; consumers are expected to
// deduplicate via their own change digest.
package treex

// Well-known configuration keys. These are case-sensitive as written.
const (
	// KeyType names the concrete type to construct for a node.
	KeyType = "type"
	// KeyValue holds the settings subtree for an explicitly typed node.
	KeyValue = "value"
	// KeyReloadOnChange overrides reload behavior for a node. The string
	// "false" disables rebuilding even when the subtree content changes.
	KeyReloadOnChange = "reloadOnChange"
)

// Separator joins path segments in Node.Path.
const Separator = "/"

// Node is a node in a hierarchical configuration tree. Implementations
// must be safe for concurrent use.
type Node interface {
	// Name returns the node's own key, empty for the root.
	Name() string

	// Path returns the full slash-separated path from the root.
	Path() string

	// Value returns the node's scalar value, if any.
	Value() (string, bool)

	// Children returns the node's children in declaration order.
	Children() []Node

	// Child returns the child with the given name, matched
	// case-insensitively.
	Child(name string) (Node, bool)

	// Subscribe registers fn to run whenever this node's subtree
	// changes and returns a cancel function. Notifications may be
	// duplicated or coalesced at the source's discretion.
	Subscribe(fn func()) (cancel func())
}

// ChildNames returns the lowercased names of a node's children. This is
// the available-key set used for constructor ranking.
func ChildNames(n Node) map[string]bool {
	if n == nil {
		return map[string]bool{}
	}
	children := n.Children()
	names := make(map[string]bool, len(children))
	for _, c := range children {
		names[lower(c.Name())] = true
	}
	return names
}

// ReloadDisabled reports whether the node explicitly opts out of
// rebuild-on-change via the reloadOnChange key.
func ReloadDisabled(n Node) bool {
	if n == nil {
		return false
	}
	c, ok := n.Child(KeyReloadOnChange)
	if !ok {
		return false
	}
	v, ok := c.Value()
	return ok && v == "false"
}

func lower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
