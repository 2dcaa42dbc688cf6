package validators

import (
	"bitwise74/model-vault/internal/storage"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"slices"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

// Reasons reported to clients for rejected uploads
const (
	ReasonNoFile          = "no_file"
	ReasonEmptyFilename   = "empty_filename"
	ReasonFilenameTooLong = "filename_too_long"
	ReasonUnsupportedType = "unsupported_type"
	ReasonFileTooLarge    = "file_too_large"
	ReasonContentMismatch = "content_mismatch"
)

const maxFileNameSize = 245

// ValidationError is a client error that must never be retried as is
type ValidationError struct {
	Reason string
	Status int
	msg    string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func invalid(status int, reason, format string, args ...any) *ValidationError {
	return &ValidationError{
		Reason: reason,
		Status: status,
		msg:    fmt.Sprintf(format, args...),
	}
}

type UploadRules struct {
	MaxSize     int64
	AllowedExts []string
}

// ValidatedFile is an upload that passed AssetValidator. File is positioned
// at the start and must be closed by the caller.
type ValidatedFile struct {
	File        multipart.File
	Filename    string
	Extension   string
	ContentType string
}

// SanitizeFilename strips any directory part of a client provided name and
// drops control characters
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)

	if name == "." || name == "/" || name == ".." {
		return ""
	}

	return name
}

func AssetValidator(fh *multipart.FileHeader, rules UploadRules) (*ValidatedFile, error) {
	if fh == nil {
		return nil, invalid(http.StatusBadRequest, ReasonNoFile, "No file provided")
	}

	name := SanitizeFilename(fh.Filename)
	if name == "" {
		return nil, invalid(http.StatusBadRequest, ReasonEmptyFilename, "File name can't be empty")
	}

	if len(name) > maxFileNameSize {
		return nil, invalid(http.StatusBadRequest, ReasonFilenameTooLong, "File name can't be longer than %d characters", maxFileNameSize)
	}

	ext := storage.Ext(name)
	if ext == "" || !slices.Contains(rules.AllowedExts, ext) {
		return nil, invalid(http.StatusBadRequest, ReasonUnsupportedType, "Unsupported file type. Allowed types are: %s", strings.Join(rules.AllowedExts, ", "))
	}

	// The header is easy to spoof but rejects honest clients early
	if fh.Size > rules.MaxSize {
		return nil, tooLarge(rules.MaxSize)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open multipart file, %w", err)
	}

	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	// The actual content decides from here on
	if _, err := f.Seek(rules.MaxSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek multipart file, %w", err)
	}

	n, err := f.Read(make([]byte, 1))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read multipart file, %w", err)
	}

	if n > 0 {
		return nil, tooLarge(rules.MaxSize)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek multipart file, %w", err)
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type, %w", err)
	}

	// Binary glTF is the only format with a reliable signature
	if ext == "glb" && !mime.Is("model/gltf-binary") {
		return nil, invalid(http.StatusBadRequest, ReasonContentMismatch, "File content doesn't match the .glb extension")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek multipart file, %w", err)
	}

	ok = true

	return &ValidatedFile{
		File:        f,
		Filename:    name,
		Extension:   ext,
		ContentType: mime.String(),
	}, nil
}

func tooLarge(max int64) *ValidationError {
	return invalid(http.StatusRequestEntityTooLarge, ReasonFileTooLarge, "File is too large, the limit is %d MiB", max>>20)
}
