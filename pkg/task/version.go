package task

// Version is the opaque content state a task instance is bound to. Version
// providers own the comparison semantics; the task graph relies on Equal to
// decide whether a memoized result is still valid.
type Version interface {
	String() string
	Equal(other Version) bool
}

// StaticVersion is a literal Version for callers that derive content state themselves.
type StaticVersion string

// String returns the literal version text.
func (version StaticVersion) String() string {
	return string(version)
}

// Equal reports whether other renders to the same literal.
func (version StaticVersion) Equal(other Version) bool {
	if other == nil {
		return false
	}
	return other.String() == string(version)
}
