package validators

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var testRules = UploadRules{
	MaxSize:     1024,
	AllowedExts: []string{"obj", "fbx", "gltf", "glb", "dae", "3ds", "ply", "stl"},
}

var glbHeader = []byte("glTF\x02\x00\x00\x00")

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	return form.File["file"][0]
}

func requireReason(t *testing.T, err error, reason string, status int) {
	t.Helper()

	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected a ValidationError, got %v", err)
	require.Equal(t, reason, ve.Reason)
	require.Equal(t, status, ve.Status)
}

func TestAssetValidatorAccepts(t *testing.T) {
	content := append(append([]byte{}, glbHeader...), bytes.Repeat([]byte{0}, 100)...)

	v, err := AssetValidator(fileHeader(t, "Robot.GLB", content), testRules)
	require.NoError(t, err)
	defer v.File.Close()

	require.Equal(t, "Robot.GLB", v.Filename)
	require.Equal(t, "glb", v.Extension)
	require.Equal(t, "model/gltf-binary", v.ContentType)

	got, err := io.ReadAll(v.File)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestAssetValidatorPlainFormats(t *testing.T) {
	v, err := AssetValidator(fileHeader(t, "cube.obj", []byte("v 0 0 0\nv 1 0 0\nf 1 2 1\n")), testRules)
	require.NoError(t, err)
	require.NoError(t, v.File.Close())
	require.Equal(t, "obj", v.Extension)
}

func TestAssetValidatorRejects(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		content  []byte
		reason   string
		status   int
	}{
		{"empty name", "   ", []byte("x"), ReasonEmptyFilename, http.StatusBadRequest},
		{"long name", strings.Repeat("a", 250) + ".obj", []byte("x"), ReasonFilenameTooLong, http.StatusBadRequest},
		{"bad extension", "notes.txt", []byte("x"), ReasonUnsupportedType, http.StatusBadRequest},
		{"no extension", "model", []byte("x"), ReasonUnsupportedType, http.StatusBadRequest},
		{"too large", "big.stl", bytes.Repeat([]byte{1}, 1025), ReasonFileTooLarge, http.StatusRequestEntityTooLarge},
		{"fake glb", "fake.glb", []byte("definitely not a model"), ReasonContentMismatch, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AssetValidator(fileHeader(t, tc.filename, tc.content), testRules)
			requireReason(t, err, tc.reason, tc.status)
		})
	}
}

func TestAssetValidatorNoFile(t *testing.T) {
	_, err := AssetValidator(nil, testRules)
	requireReason(t, err, ReasonNoFile, http.StatusBadRequest)
}

func TestAssetValidatorExactLimit(t *testing.T) {
	v, err := AssetValidator(fileHeader(t, "edge.stl", bytes.Repeat([]byte{1}, 1024)), testRules)
	require.NoError(t, err)
	require.NoError(t, v.File.Close())
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "passwd.obj", SanitizeFilename("../../etc/passwd.obj"))
	require.Equal(t, "cube.obj", SanitizeFilename(`C:\Users\me\cube.obj`))
	require.Equal(t, "robot.glb", SanitizeFilename("  robot\x00.glb "))
	require.Equal(t, "", SanitizeFilename(".."))
	require.Equal(t, "", SanitizeFilename("   "))
}

func TestUserValidators(t *testing.T) {
	require.NoError(t, EmailValidator("alice@example.com"))
	require.ErrorIs(t, EmailValidator(""), ErrEmailEmpty)
	require.ErrorIs(t, EmailValidator("Alice <alice@example.com>"), ErrEmailInvalid)

	require.NoError(t, UsernameValidator("alice_99"))
	require.ErrorIs(t, UsernameValidator("al"), ErrUsernameInvalid)
	require.ErrorIs(t, UsernameValidator("bad name"), ErrUsernameInvalid)

	require.NoError(t, PasswordValidator("correct horse"))
	require.ErrorIs(t, PasswordValidator("short"), ErrPasswordTooShort)
	require.ErrorIs(t, PasswordValidator(strings.Repeat("a", 256)), ErrPasswordTooLong)
}
