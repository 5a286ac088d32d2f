// Package storage writes test artifacts to disk.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilePersister stores artifacts. It hides where and how the bytes end up.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// LocalFilePersister writes artifacts to the local disk, creating parent
// directories as needed.
type LocalFilePersister struct{}

// Persist writes data to path, replacing any previous content.
func (l *LocalFilePersister) Persist(ctx context.Context, path string, data io.Reader) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}
	cp := filepath.Clean(path)

	dir := filepath.Dir(cp)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory %q: %w", dir, err)
	}

	f, err := os.OpenFile(cp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating artifact %q: %w", cp, err)
	}
	defer func() {
		// Only surface the close error when the copy succeeded.
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing artifact %q: %w", cp, cerr)
		}
	}()

	if _, err = io.Copy(f, data); err != nil {
		return fmt.Errorf("writing artifact %q: %w", cp, err)
	}
	return nil
}
