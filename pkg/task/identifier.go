package task

import (
	"github.com/google/uuid"
)

// ID uniquely identifies a task instance. Identifiers sort by creation time.
type ID string

// String returns the identifier text.
func (identifier ID) String() string {
	return string(identifier)
}

// IDGenerator produces task identifiers. Implementations must be safe for concurrent use
// and must return values that are unique and non-decreasing in creation order.
type IDGenerator interface {
	NewID() ID
}

// IDGeneratorFunc adapts a function to the IDGenerator interface.
type IDGeneratorFunc func() ID

// NewID invokes the wrapped function.
func (generator IDGeneratorFunc) NewID() ID {
	return generator()
}

// TimeOrderedIDGenerator emits UUIDv7 identifiers. The uuid package serializes
// timestamp generation, so successive values within one process are strictly increasing.
type TimeOrderedIDGenerator struct{}

// NewID returns a fresh UUIDv7 identifier.
func (TimeOrderedIDGenerator) NewID() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// DefaultIDGenerator is used when Parameters.IDGenerator is unset.
var DefaultIDGenerator IDGenerator = TimeOrderedIDGenerator{}
