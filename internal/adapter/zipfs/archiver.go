// Package zipfs stores command artifacts as zip files on the local
// filesystem, one per command id. Writes go to a temp file first and are
// published with an atomic rename, so a download started against the
// previous artifact never sees a half-written one.
package zipfs

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"

	"github.com/Strob0t/CommandForge/internal/domain"
)

// skipDirs are work-tree directories excluded from the artifact.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
}

// Archiver implements archive.Archiver on a local directory.
type Archiver struct {
	dir string
}

// NewArchiver creates an Archiver writing artifacts under dir.
func NewArchiver(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("zipfs: create artifact dir: %w", err)
	}
	return &Archiver{dir: dir}, nil
}

// Archive zips workTree into the artifact for commandID.
func (a *Archiver) Archive(ctx context.Context, commandID, workTree string) (string, error) {
	final := a.path(commandID)

	tmp, err := os.CreateTemp(a.dir, commandID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("zipfs: create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeZip(ctx, tmp, workTree); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("zipfs: close temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("zipfs: publish artifact for %s: %w", commandID, err)
	}
	return final, nil
}

// Retrieve returns the artifact path for commandID.
func (a *Archiver) Retrieve(_ context.Context, commandID string) (string, error) {
	path := a.path(commandID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("zipfs: artifact for command %s: %w", commandID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("zipfs: stat artifact: %w", err)
	}
	return path, nil
}

// Discard removes the artifact for commandID, if any.
func (a *Archiver) Discard(_ context.Context, commandID string) error {
	if err := os.Remove(a.path(commandID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("zipfs: discard artifact for %s: %w", commandID, err)
	}
	return nil
}

func (a *Archiver) path(commandID string) string {
	return filepath.Join(a.dir, commandID+".zip")
}

// writeZip streams workTree into w as a zip, swapping in the faster
// klauspost deflate implementation.
func writeZip(ctx context.Context, w io.Writer, workTree string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	root := filepath.Clean(workTree)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, src)
		src.Close()
		return err
	})
	if err != nil {
		return fmt.Errorf("zipfs: zip %s: %w", workTree, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("zipfs: finalize zip: %w", err)
	}
	return nil
}
