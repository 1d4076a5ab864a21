// Package shape declares an interface whose display name matches its
// sibling under internal/beta; the two are distinct proxy targets.
package shape

// Source provides configuration snapshots.
type Source interface {
	Snapshot() string
}
