package storage

var mimeTypes = map[string]string{
	"glb":  "model/gltf-binary",
	"gltf": "application/json",
	"obj":  "text/plain",
	"dae":  "application/xml",
}

// MimeType returns the content type models with the given extension are
// served with. Unknown formats fall back to application/octet-stream.
func MimeType(ext string) string {
	if m, ok := mimeTypes[ext]; ok {
		return m
	}

	return "application/octet-stream"
}
