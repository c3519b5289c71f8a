package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("sk-or-v1-abc123", "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "sk-or-v1-abc123", got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("sk-or-v1-abc123", "hunter2")
	require.NoError(t, err)

	_, err = DecryptSecret(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptRequiresInputs(t *testing.T) {
	_, err := EncryptSecret("", "hunter2")
	assert.Error(t, err)

	_, err = EncryptSecret("secret", "")
	assert.Error(t, err)
}

func TestLoadSecret(t *testing.T) {
	t.Run("raw takes precedence", func(t *testing.T) {
		got, err := LoadSecret(SecretConfig{RawSecret: " sk-raw ", EncryptedSecretPath: "/does/not/exist"})
		require.NoError(t, err)
		assert.Equal(t, "sk-raw", got)
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptSecret("sk-from-file", "pw")
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		got, err := LoadSecret(SecretConfig{EncryptedSecretPath: path, Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, "sk-from-file", got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := LoadSecret(SecretConfig{})
		assert.Error(t, err)
	})
}
