// Package storage contains the backends that hold the bytes of uploaded
// models. Exactly one backend is active per process.
package storage

import (
	"context"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Location describes where the bytes of an asset live
type Location struct {
	Backend     string
	StoredName  string
	ExternalRef string
	Size        int64
}

// Provider is implemented by LocalStorage and S3Storage
type Provider interface {
	// Backend returns the tag saved on every asset written by this provider
	Backend() string
	// Upload writes r under a freshly generated name. Only the extension of
	// suggestedName is used.
	Upload(ctx context.Context, r io.Reader, suggestedName string) (Location, error)
	// Download returns the whole object. The caller must close it.
	Download(ctx context.Context, loc Location) (io.ReadCloser, error)
	// Delete reports false with a nil error when there was nothing to delete
	Delete(ctx context.Context, loc Location) (bool, error)
	// Exists returns ErrIntegrityUnknown when presence couldn't be determined
	Exists(ctx context.Context, loc Location) (bool, error)
	// ResolveURL returns an empty string when the backend can't serve the
	// object directly
	ResolveURL(ctx context.Context, loc Location) (string, error)
}

var extRe = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// NewStoredName generates an opaque collision free name keeping only a
// sanitized extension of the suggested name
func NewStoredName(suggestedName string) string {
	name := strings.ReplaceAll(uuid.NewString(), "-", "")

	if ext := Ext(suggestedName); ext != "" {
		name += "." + ext
	}

	return name
}

// Ext returns the lowercase extension of name without the dot, or an empty
// string if it isn't a plain alphanumeric token
func Ext(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.ReplaceAll(name, "\\", "/")), "."))
	if !extRe.MatchString(ext) {
		return ""
	}

	return ext
}

// validStoredName guards against keys that could escape the storage root
func validStoredName(name string) bool {
	return name != "" &&
		name != "." && name != ".." &&
		!strings.ContainsAny(name, "/\\") &&
		!strings.Contains(name, "..")
}

// countingReader counts the bytes read through it and stops early once
// ctx is done
type countingReader struct {
	ctx context.Context
	r   io.Reader
	n   int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
