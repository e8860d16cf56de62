package mux

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"hls-packager/internal/hls"
)

// segmentCipher encrypts a whole segment with AES-128-CBC and PKCS#7
// padding, one chunk at a time. Bytes that do not fill a block are held
// until the next chunk or until final.
type segmentCipher struct {
	block   cipher.Block
	iv      hls.IV
	mode    cipher.BlockMode
	pending []byte
}

func newSegmentCipher(key hls.Key, iv hls.IV) (*segmentCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	c := &segmentCipher{block: block, iv: iv}
	c.reset()
	return c, nil
}

func (c *segmentCipher) reset() {
	c.mode = cipher.NewCBCEncrypter(c.block, c.iv[:])
	c.pending = c.pending[:0]
}

// update returns the ciphertext of every complete block available so far.
func (c *segmentCipher) update(p []byte) []byte {
	c.pending = append(c.pending, p...)
	n := len(c.pending) / aes.BlockSize * aes.BlockSize
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	c.mode.CryptBlocks(out, c.pending[:n])
	c.pending = append(c.pending[:0], c.pending[n:]...)
	return out
}

// final pads and returns the last block.
func (c *segmentCipher) final() []byte {
	pad := aes.BlockSize - len(c.pending)
	for i := 0; i < pad; i++ {
		c.pending = append(c.pending, byte(pad))
	}
	out := make([]byte, len(c.pending))
	c.mode.CryptBlocks(out, c.pending)
	c.pending = c.pending[:0]
	return out
}

// paddedSize returns the ciphertext size of n plaintext bytes.
func paddedSize(n int64) int64 {
	return (n/aes.BlockSize + 1) * aes.BlockSize
}

// Sample encryption leaves a clear lead in each frame and encrypts full
// blocks after it with CBC restarted from the segment IV. Video uses a
// 1:9 encrypt:skip block pattern, audio encrypts every full block.
const (
	videoClearLead = 32
	audioClearLead = 16
	videoSkip      = 9
)

type sampleCipher struct {
	block cipher.Block
	iv    hls.IV
}

func newSampleCipher(key hls.Key, iv hls.IV) (*sampleCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	return &sampleCipher{block: block, iv: iv}, nil
}

// encryptFrame encrypts data in place. The size never changes.
func (c *sampleCipher) encryptFrame(data []byte, video bool) {
	lead, skip := audioClearLead, 0
	if video {
		lead, skip = videoClearLead, videoSkip
	}
	if len(data) <= lead {
		return
	}
	mode := cipher.NewCBCEncrypter(c.block, c.iv[:])
	body := data[lead:]
	for off := 0; off+aes.BlockSize <= len(body); off += aes.BlockSize * (1 + skip) {
		blk := body[off : off+aes.BlockSize]
		mode.CryptBlocks(blk, blk)
	}
}
