// Package shape declares an interface whose display name matches its
// sibling under internal/alpha; this one is a bare pull iterator.
package shape

// Source yields values one at a time.
type Source interface {
	Next() (string, bool)
}
