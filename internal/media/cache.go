package media

import (
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

const (
	// DefaultReadAheadSize is the size of each cached block read from disk.
	DefaultReadAheadSize = 64 * 1024

	// DefaultCacheBlocks is the default number of blocks kept in memory.
	DefaultCacheBlocks = 256
)

type blockKey struct {
	path  string
	index int64
}

// FrameCache reads frame payloads through a shared LRU of read-ahead blocks.
// It is safe for concurrent use; the blocks it returns are never mutated.
type FrameCache struct {
	fs        afero.Fs
	blockSize int64
	blocks    *lru.Cache[blockKey, []byte]
}

// NewFrameCache returns a cache holding up to blocks read-ahead blocks of
// blockSize bytes each. Non-positive values select the defaults.
func NewFrameCache(fsys afero.Fs, blockSize int64, blocks int) (*FrameCache, error) {
	if blockSize <= 0 {
		blockSize = DefaultReadAheadSize
	}
	if blocks <= 0 {
		blocks = DefaultCacheBlocks
	}
	c, err := lru.New[blockKey, []byte](blocks)
	if err != nil {
		return nil, fmt.Errorf("create frame cache: %w", err)
	}
	return &FrameCache{fs: fsys, blockSize: blockSize, blocks: c}, nil
}

// ReadFrame returns size bytes of path starting at offset.
func (c *FrameCache) ReadFrame(path string, offset int64, size uint32) ([]byte, error) {
	out := make([]byte, 0, size)
	pos := offset
	end := offset + int64(size)
	for pos < end {
		idx := pos / c.blockSize
		block, err := c.block(path, idx)
		if err != nil {
			return nil, err
		}
		start := pos - idx*c.blockSize
		if start >= int64(len(block)) {
			return nil, fmt.Errorf("read %s at %d: %w", path, pos, io.ErrUnexpectedEOF)
		}
		n := int64(len(block)) - start
		if n > end-pos {
			n = end - pos
		}
		out = append(out, block[start:start+n]...)
		pos += n
	}
	return out, nil
}

// Len returns the number of cached blocks.
func (c *FrameCache) Len() int {
	return c.blocks.Len()
}

func (c *FrameCache) block(path string, idx int64) ([]byte, error) {
	key := blockKey{path: path, index: idx}
	if b, ok := c.blocks.Get(key); ok {
		return b, nil
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, c.blockSize)
	n, err := f.ReadAt(buf, idx*c.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	buf = buf[:n]
	c.blocks.Add(key, buf)
	return buf, nil
}
