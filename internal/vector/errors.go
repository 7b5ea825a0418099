package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when there is nothing to embed.
	ErrEmptyText = errors.New("text is empty")

	// ErrDimensionMismatch is returned when an embedding does not match the
	// collection's vector size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// StatusError reports a non-2xx answer from the embedding service or Qdrant.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: status %d body %s", e.Op, e.Status, e.Body)
}
