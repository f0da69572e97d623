package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecretCipher(t *testing.T) {
	t.Run("Valid passphrase", func(t *testing.T) {
		c, err := NewSecretCipher("test-passphrase")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("Empty passphrase", func(t *testing.T) {
		_, err := NewSecretCipher("")
		assert.ErrorIs(t, err, ErrCipherKeyMissing)
	})
}

func TestAESSecretCipher_RoundTrip(t *testing.T) {
	c, err := NewSecretCipher("test-passphrase")
	require.NoError(t, err)

	t.Run("Encrypt then decrypt", func(t *testing.T) {
		ciphertext, err := c.Encrypt("refresh-secret-value")
		require.NoError(t, err)
		assert.NotEqual(t, "refresh-secret-value", ciphertext)

		plaintext, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "refresh-secret-value", plaintext)
	})

	t.Run("Nonces differ between calls", func(t *testing.T) {
		first, err := c.Encrypt("same-value")
		require.NoError(t, err)
		second, err := c.Encrypt("same-value")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("Wrong key fails authentication", func(t *testing.T) {
		other, err := NewSecretCipher("different-passphrase")
		require.NoError(t, err)

		ciphertext, err := c.Encrypt("refresh-secret-value")
		require.NoError(t, err)

		_, err = other.Decrypt(ciphertext)
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})

	t.Run("Not base64", func(t *testing.T) {
		_, err := c.Decrypt("%%%not-base64%%%")
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})

	t.Run("Truncated ciphertext", func(t *testing.T) {
		_, err := c.Decrypt("c2hvcnQ=")
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})
}
