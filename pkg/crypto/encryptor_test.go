package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	encryptor, err := NewEncryptor(key)
	require.NoError(t, err)

	plaintext := []byte("service-token-value")
	ciphertext, err := encryptor.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := encryptor.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWithWrongKey(t *testing.T) {
	first, err := NewEncryptor("")
	require.NoError(t, err)
	second, err := NewEncryptor("")
	require.NoError(t, err)

	ciphertext, err := first.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = second.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestNewEncryptorRejectsBadKey(t *testing.T) {
	_, err := NewEncryptor("not-an-age-key")
	assert.Error(t, err)
}
