package crypt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/crypt"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := crypt.New(testKey())
	require.NoError(t, err)

	plain := "employee disclosed a stress-related condition"
	sealed, err := codec.Encrypt(plain)
	require.NoError(t, err)
	assert.NotEqual(t, plain, sealed, "ciphertext must not expose the plaintext")

	back, err := codec.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, back)
}

func TestCodec_EmptyString_PassesThrough(t *testing.T) {
	codec, err := crypt.New(testKey())
	require.NoError(t, err)

	sealed, err := codec.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", sealed)

	back, err := codec.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", back)
}

func TestCodec_FreshNoncePerValue(t *testing.T) {
	codec, err := crypt.New(testKey())
	require.NoError(t, err)

	a, err := codec.Encrypt("same text")
	require.NoError(t, err)
	b, err := codec.Encrypt("same text")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "two encryptions of the same value must differ")
}

func TestCodec_WrongKey_FailsToOpen(t *testing.T) {
	codec, err := crypt.New(testKey())
	require.NoError(t, err)

	otherKey := testKey()
	otherKey[0] ^= 0xff
	other, err := crypt.New(otherKey)
	require.NoError(t, err)

	sealed, err := codec.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestCodec_Decrypt_RejectsGarbage(t *testing.T) {
	codec, err := crypt.New(testKey())
	require.NoError(t, err)

	_, err = codec.Decrypt("not base64 at all ***")
	assert.Error(t, err)

	_, err = codec.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	_, err := crypt.New([]byte("too short"))
	assert.Error(t, err)
}

func TestNewFromHex(t *testing.T) {
	_, err := crypt.NewFromHex("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	assert.NoError(t, err)

	_, err = crypt.NewFromHex("zz")
	assert.Error(t, err)
}
