// Package fsstore keeps blobs as files in a single directory.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/storage"
)

type Dir struct {
	root string
}

var _ storage.ReadWriter = (*Dir)(nil)

func New(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("data directory is required")
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(d.root, name), nil
}

func (d *Dir) Read(ctx context.Context, name string) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveStoreOp("fs_read", err, time.Since(start).Seconds())
		return nil, err
	}
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	observability.ObserveStoreOp("fs_read", err, time.Since(start).Seconds())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	return b, nil
}

// Write replaces name atomically via a temp file in the same directory.
func (d *Dir) Write(ctx context.Context, name string, data []byte) error {
	start := time.Now()
	err := d.write(ctx, name, data)
	observability.ObserveStoreOp("fs_write", err, time.Since(start).Seconds())
	return err
}

func (d *Dir) write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", d.root, err)
	}
	tmp, err := os.CreateTemp(d.root, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename %q: %w", name, err)
	}
	return nil
}
