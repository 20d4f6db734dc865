// Package storage defines where persisted dataset, tile and index blobs live.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Source when the named blob does not exist.
var ErrNotFound = errors.New("blob not found")

type Source interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// ReadWriter is a backend that can both serve and persist blobs.
type ReadWriter interface {
	Source
	Sink
}
