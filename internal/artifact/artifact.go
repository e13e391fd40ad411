// Package artifact publishes export files and returns a public link to them.
package artifact

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the destination bucket or directory is missing.
var ErrNotFound = errors.New("artifact destination not found")

// Store replaces any existing artifact called name with data and returns a
// link anyone can open.
type Store interface {
	Publish(ctx context.Context, name string, data []byte) (string, error)
}

var (
	_ Store = (*GCS)(nil)
	_ Store = (*Local)(nil)
)
