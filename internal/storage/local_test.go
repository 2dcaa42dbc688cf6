package storage

import (
	"bitwise74/model-vault/internal/model"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var storedNameRe = regexp.MustCompile(`^[0-9a-f]{32}\.glb$`)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()

	l, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return l
}

func TestLocalUploadDownload(t *testing.T) {
	l := newLocal(t)
	data := bytes.Repeat([]byte{0x7f}, 10240)

	loc, err := l.Upload(context.Background(), bytes.NewReader(data), "Robot.GLB")
	require.NoError(t, err)
	require.Equal(t, model.BackendLocal, loc.Backend)
	require.Regexp(t, storedNameRe, loc.StoredName)
	require.EqualValues(t, len(data), loc.Size)
	require.Empty(t, loc.ExternalRef)

	rc, err := l.Download(context.Background(), loc)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

// TestLocalUploadIgnoresSuggestedPath verifies a hostile filename can only
// influence the extension of the stored name.
func TestLocalUploadIgnoresSuggestedPath(t *testing.T) {
	l := newLocal(t)

	loc, err := l.Upload(context.Background(), bytes.NewReader([]byte("x")), "../../etc/passwd.glb")
	require.NoError(t, err)
	require.Regexp(t, storedNameRe, loc.StoredName)

	_, err = os.Stat(filepath.Join(l.Root(), loc.StoredName))
	require.NoError(t, err)
}

func TestLocalUploadRecreatesRoot(t *testing.T) {
	l := newLocal(t)
	require.NoError(t, os.RemoveAll(l.Root()))

	loc, err := l.Upload(context.Background(), bytes.NewReader([]byte("v 0 0 0")), "cube.obj")
	require.NoError(t, err)

	ok, err := l.Exists(context.Background(), loc)
	require.NoError(t, err)
	require.True(t, ok)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestLocalUploadFailureLeavesNothing(t *testing.T) {
	l := newLocal(t)

	_, err := l.Upload(context.Background(), failingReader{}, "cube.obj")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStorageWrite)

	var we *StorageWriteError
	require.ErrorAs(t, err, &we)
	require.Equal(t, model.BackendLocal, we.Backend)

	entries, err := os.ReadDir(l.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLocalUploadCancelled(t *testing.T) {
	l := newLocal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Upload(ctx, bytes.NewReader([]byte("solid cube")), "cube.stl")
	require.ErrorIs(t, err, ErrStorageWrite)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(l.Root())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	l := newLocal(t)

	loc, err := l.Upload(context.Background(), bytes.NewReader([]byte("ply")), "mesh.ply")
	require.NoError(t, err)

	deleted, err := l.Delete(context.Background(), loc)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = l.Delete(context.Background(), loc)
	require.NoError(t, err)
	require.False(t, deleted)

	ok, err := l.Exists(context.Background(), loc)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = l.Download(context.Background(), loc)
	require.ErrorIs(t, err, ErrStorageNotFound)
}

func TestLocalRejectsInvalidLocation(t *testing.T) {
	l := newLocal(t)

	for _, name := range []string{"", "..", "../secret.glb", "a/b.glb", `a\b.glb`} {
		_, err := l.Exists(context.Background(), Location{StoredName: name})
		require.ErrorIs(t, err, ErrInvalidLocation, name)

		_, err = l.Delete(context.Background(), Location{StoredName: name})
		require.ErrorIs(t, err, ErrInvalidLocation, name)
	}
}

func TestLocalResolveURLIsEmpty(t *testing.T) {
	l := newLocal(t)

	u, err := l.ResolveURL(context.Background(), Location{StoredName: "abc.glb"})
	require.NoError(t, err)
	require.Empty(t, u)
}

func TestExt(t *testing.T) {
	require.Equal(t, "glb", Ext("Robot.GLB"))
	require.Equal(t, "obj", Ext(`C:\models\cube.obj`))
	require.Equal(t, "", Ext("noext"))
	require.Equal(t, "", Ext("weird.g!b"))
	require.Equal(t, "", Ext("long.abcdefghijk"))
}

func TestMimeType(t *testing.T) {
	require.Equal(t, "model/gltf-binary", MimeType("glb"))
	require.Equal(t, "application/json", MimeType("gltf"))
	require.Equal(t, "text/plain", MimeType("obj"))
	require.Equal(t, "application/xml", MimeType("dae"))
	require.Equal(t, "application/octet-stream", MimeType("fbx"))
	require.Equal(t, "application/octet-stream", MimeType(""))
}
