package cryptcodec_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/cryptcodec"
)

func TestAESGCMRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32) // AES-256
	c, err := cryptcodec.NewAESGCMCipher(key)
	require.NoError(t, err)

	plaintext := []byte(`{"hello":"world"}`)
	frame, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, frame)

	// Stored ciphertext must not contain the plaintext in the clear.
	require.False(t, bytes.Contains(frame, plaintext))

	got, err := c.Decrypt(frame)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestAESGCMTamperedFrameFailsIntegrity(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 16) // AES-128
	c, err := cryptcodec.NewAESGCMCipher(key)
	require.NoError(t, err)

	frame, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = c.Decrypt(tampered)
	require.ErrorIs(t, err, cryptcodec.ErrDataIntegrity)
}

func TestAESGCMWrongKeyFailsIntegrity(t *testing.T) {
	key1 := bytes.Repeat([]byte{0x01}, 32)
	key2 := bytes.Repeat([]byte{0x02}, 32)
	c1, err := cryptcodec.NewAESGCMCipher(key1)
	require.NoError(t, err)
	c2, err := cryptcodec.NewAESGCMCipher(key2)
	require.NoError(t, err)

	frame, err := c1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = c2.Decrypt(frame)
	require.ErrorIs(t, err, cryptcodec.ErrDataIntegrity)
}

func TestEncryptUsesFreshNonceEachCall(t *testing.T) {
	key := bytes.Repeat([]byte{0x09}, 32)
	c, err := cryptcodec.NewAESGCMCipher(key)
	require.NoError(t, err)

	f1, err := c.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	f2, err := c.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)

	require.NotEqual(t, f1, f2, "nonce reuse would make identical plaintexts produce identical frames")
}

func TestZlibCompressorRoundTrip(t *testing.T) {
	z := cryptcodec.NewZlibCompressor(0)
	plaintext := []byte(strings.Repeat("the quick brown fox ", 50))

	compressed, err := z.Compress(plaintext)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(plaintext))

	got, err := z.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestZlibDecompressCorruptStream(t *testing.T) {
	z := cryptcodec.NewZlibCompressor(0)
	_, err := z.Decompress([]byte("not a zlib stream"))
	require.ErrorIs(t, err, cryptcodec.ErrDataIntegrity)
}
