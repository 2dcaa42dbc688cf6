package storage

import (
	"bitwise74/model-vault/internal/model"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LocalStorage keeps files in a single directory on disk. The directory
// may be wiped between deployments so it's recreated before every write.
type LocalStorage struct {
	root string
}

func NewLocal(root string) (*LocalStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage path is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local storage path, %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage dir, %w", err)
	}

	return &LocalStorage{root: abs}, nil
}

func (l *LocalStorage) Backend() string {
	return model.BackendLocal
}

// Root returns the absolute directory files are written to
func (l *LocalStorage) Root() string {
	return l.root
}

func (l *LocalStorage) Upload(ctx context.Context, r io.Reader, suggestedName string) (Location, error) {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return Location{}, writeErr(l.Backend(), fmt.Errorf("failed to create storage dir, %w", err))
	}

	storedName := NewStoredName(suggestedName)

	// Write to a temporary file first so an aborted upload never leaves
	// a partial file under the final name
	temp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return Location{}, writeErr(l.Backend(), fmt.Errorf("failed to create temporary file, %w", err))
	}

	cleanup := func() {
		temp.Close()
		if err := os.Remove(temp.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("Failed to remove temporary upload file", zap.String("path", temp.Name()), zap.Error(err))
		}
	}

	cr := &countingReader{ctx: ctx, r: r}
	if _, err := io.Copy(temp, cr); err != nil {
		cleanup()
		return Location{}, writeErr(l.Backend(), fmt.Errorf("failed to write file, %w", err))
	}

	if err := temp.Sync(); err != nil {
		cleanup()
		return Location{}, writeErr(l.Backend(), fmt.Errorf("failed to sync file, %w", err))
	}

	if err := temp.Close(); err != nil {
		cleanup()
		return Location{}, writeErr(l.Backend(), fmt.Errorf("failed to close file, %w", err))
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return Location{}, writeErr(l.Backend(), err)
	}

	if err := os.Rename(temp.Name(), filepath.Join(l.root, storedName)); err != nil {
		cleanup()
		return Location{}, writeErr(l.Backend(), fmt.Errorf("failed to move file into place, %w", err))
	}

	return Location{
		Backend:    l.Backend(),
		StoredName: storedName,
		Size:       cr.n,
	}, nil
}

func (l *LocalStorage) Download(_ context.Context, loc Location) (io.ReadCloser, error) {
	p, err := l.path(loc)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrStorageNotFound
		}

		return nil, fmt.Errorf("failed to open file, %w", err)
	}

	return f, nil
}

func (l *LocalStorage) Delete(_ context.Context, loc Location) (bool, error) {
	p, err := l.path(loc)
	if err != nil {
		return false, err
	}

	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete file, %w", err)
	}

	return true, nil
}

func (l *LocalStorage) Exists(_ context.Context, loc Location) (bool, error) {
	p, err := l.path(loc)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, unknownErr(err)
	}

	return info.Mode().IsRegular(), nil
}

// ResolveURL always returns an empty string, local files are streamed
// through the application
func (l *LocalStorage) ResolveURL(context.Context, Location) (string, error) {
	return "", nil
}

func (l *LocalStorage) path(loc Location) (string, error) {
	if !validStoredName(loc.StoredName) {
		return "", fmt.Errorf("%w, %q", ErrInvalidLocation, loc.StoredName)
	}

	return filepath.Join(l.root, loc.StoredName), nil
}
