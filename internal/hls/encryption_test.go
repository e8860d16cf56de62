package hls

import (
	"crypto/md5"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentIV(t *testing.T) {
	tests := []struct {
		index uint32
		tail  [4]byte
	}{
		{0, [4]byte{0, 0, 0, 1}},
		{255, [4]byte{0, 0, 1, 0}},
		{256, [4]byte{0, 0, 1, 1}},
		{0xfffffffe, [4]byte{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		iv := SegmentIV(tt.index)
		assert.Equal(t, make([]byte, 12), iv[:12], "index %d", tt.index)
		assert.Equal(t, tt.tail[:], iv[12:], "index %d", tt.index)
	}
}

func TestDeriveEncryptionParams(t *testing.T) {
	key := DeriveKey([]byte("secret"), "movie.mp4")

	p := DeriveEncryptionParams(EncryptionNone, 4, key)
	assert.False(t, p.Enabled())
	assert.Equal(t, Key{}, p.Key)

	p = DeriveEncryptionParams(EncryptionAES128, 4, key)
	assert.True(t, p.Enabled())
	assert.Equal(t, key, p.Key)
	assert.Equal(t, SegmentIV(4), p.IV)
}

func TestDeriveKey(t *testing.T) {
	want := md5.Sum([]byte("secretmovie.mp4"))
	assert.Equal(t, Key(want), DeriveKey([]byte("secret"), "movie.mp4"))
	assert.NotEqual(t, DeriveKey([]byte("secret"), "a.mp4"), DeriveKey([]byte("secret"), "b.mp4"))
}

func TestParseEncryptionMethod(t *testing.T) {
	for in, want := range map[string]EncryptionMethod{
		"":           EncryptionNone,
		"none":       EncryptionNone,
		"AES-128":    EncryptionAES128,
		"sample-aes": EncryptionSampleAES,
	} {
		got, err := ParseEncryptionMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEncryptionMethod("cenc")
	assert.Error(t, err)

	assert.Equal(t, "SAMPLE-AES", EncryptionSampleAES.PlaylistMethod())
	assert.Equal(t, "AES-128", EncryptionAES128.PlaylistMethod())
}
