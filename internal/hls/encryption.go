package hls

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// KeySize is the size of an AES-128 key block.
	KeySize = 16

	// IVSize is the size of an AES block, and so of the initialization vector.
	IVSize = 16
)

// Key is a fixed-size AES-128 key block.
type Key [KeySize]byte

// IV is a fixed-size initialization vector.
type IV [IVSize]byte

// EncryptionMethod is the segment encryption scheme.
type EncryptionMethod int

const (
	EncryptionNone EncryptionMethod = iota
	EncryptionAES128
	EncryptionSampleAES
)

func (m EncryptionMethod) String() string {
	switch m {
	case EncryptionNone:
		return "none"
	case EncryptionAES128:
		return "aes-128"
	case EncryptionSampleAES:
		return "sample-aes"
	default:
		return fmt.Sprintf("EncryptionMethod(%d)", int(m))
	}
}

// PlaylistMethod returns the METHOD attribute value for EXT-X-KEY.
func (m EncryptionMethod) PlaylistMethod() string {
	switch m {
	case EncryptionAES128:
		return "AES-128"
	case EncryptionSampleAES:
		return "SAMPLE-AES"
	default:
		return "NONE"
	}
}

// ParseEncryptionMethod parses the configuration spelling of a method.
func ParseEncryptionMethod(s string) (EncryptionMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return EncryptionNone, nil
	case "aes-128":
		return EncryptionAES128, nil
	case "sample-aes":
		return EncryptionSampleAES, nil
	default:
		return EncryptionNone, fmt.Errorf("unknown encryption method %q", s)
	}
}

// EncryptionParams are the per-segment encryption inputs. Key and IV are
// meaningful only when Enabled reports true.
type EncryptionParams struct {
	Method EncryptionMethod
	Key    Key
	IV     IV
}

// Enabled reports whether segments are encrypted.
func (p EncryptionParams) Enabled() bool {
	return p.Method != EncryptionNone
}

// DeriveEncryptionParams returns the encryption parameters for the segment
// at the zero-based segmentIndex.
func DeriveEncryptionParams(method EncryptionMethod, segmentIndex uint32, key Key) EncryptionParams {
	if method == EncryptionNone {
		return EncryptionParams{Method: EncryptionNone}
	}
	return EncryptionParams{
		Method: method,
		Key:    key,
		IV:     SegmentIV(segmentIndex),
	}
}

// SegmentIV returns the IV of a segment: the one-based ordinal in big endian
// in the last four bytes, zeros elsewhere. Players derive the same value from
// the media sequence number, so this must stay bit-exact.
func SegmentIV(segmentIndex uint32) IV {
	var iv IV
	binary.BigEndian.PutUint32(iv[IVSize-4:], segmentIndex+1)
	return iv
}

// DeriveKey returns the key block of a media URI: MD5(secret || uri).
func DeriveKey(secret []byte, uri string) Key {
	h := md5.New()
	h.Write(secret)
	h.Write([]byte(uri))
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}
