package config

import (
	"testing"

	v "github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()

	v.Reset()
	SetDefaults()
	v.Set("jwt.secret", "unit-test-secret")
	t.Cleanup(v.Reset)
}

func TestValidateDefaults(t *testing.T) {
	resetViper(t)

	require.NoError(t, Validate())
	require.Equal(t, int64(100<<20), MaxUploadSize())
	require.Equal(t, DefaultAllowedExtensions, AllowedExtensions())
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	resetViper(t)
	v.Set("jwt.secret", "")

	require.Error(t, Validate())
}

func TestValidateRejectsUnknownStorageType(t *testing.T) {
	resetViper(t)
	v.Set("storage.type", "cloudinary")

	require.EqualError(t, Validate(), "invalid storage type provided")
}

func TestValidateRemoteNeedsCredentials(t *testing.T) {
	resetViper(t)
	v.Set("storage.type", "remote")
	v.Set("storage.s3.bucket", "models")

	require.EqualError(t, Validate(), "access key id can't be empty")

	v.Set("storage.s3.access_key_id", "key")
	v.Set("storage.s3.secret_access_key", "secret")
	require.NoError(t, Validate())
}

func TestAllowedExtensionsFromEnvString(t *testing.T) {
	resetViper(t)
	v.Set("upload.allowed_extensions", "GLB, .stl,obj,glb")

	require.Equal(t, []string{"glb", "stl", "obj"}, AllowedExtensions())
}
