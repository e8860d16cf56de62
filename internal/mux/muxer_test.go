package mux

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"net/http"
	"testing"
	"time"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
	"hls-packager/internal/media/mediatest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSegmenter = media.Segmenter{SegmentDuration: 4 * time.Second}

func newTestStream(t *testing.T, opts mediatest.Options) (*media.StreamMetadata, hls.FrameReader) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	meta, err := mediatest.Write(fsys, "/media", "movie.mp4", opts)
	require.NoError(t, err)
	frames, err := media.NewFrameCache(fsys, 4096, 64)
	require.NoError(t, err)
	return meta, frames
}

type bufferSink struct {
	bytes.Buffer
}

func (s *bufferSink) WriteTail(p []byte) error {
	s.Write(p)
	return nil
}

func newTestMuxer(t *testing.T, meta *media.StreamMetadata, frames hls.FrameReader, method hls.EncryptionMethod, interleave bool, index uint32) (*Muxer, *bufferSink) {
	t.Helper()
	sink := &bufferSink{}
	m, err := newMuxer(hls.MuxerParams{
		Config:       hls.MuxerConfig{InterleaveFrames: interleave},
		Encryption:   hls.DeriveEncryptionParams(method, index, hls.DeriveKey([]byte("secret"), "movie.mp4")),
		SegmentIndex: index,
		Segmenter:    testSegmenter,
		Metadata:     meta,
		Frames:       frames,
		Sink:         sink,
	})
	require.NoError(t, err)
	return m, sink
}

func runMuxer(t *testing.T, m *Muxer) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		done, err := m.Process()
		require.NoError(t, err)
		if done {
			return
		}
	}
	t.Fatal("muxer never finished")
}

func TestMuxer_simulated_size_matches_output(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())
	require.Equal(t, uint32(3), testSegmenter.SegmentCount(meta))

	tests := []struct {
		name       string
		method     hls.EncryptionMethod
		interleave bool
	}{
		{"none", hls.EncryptionNone, false},
		{"none interleaved", hls.EncryptionNone, true},
		{"aes-128", hls.EncryptionAES128, false},
		{"sample-aes", hls.EncryptionSampleAES, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seg := uint32(0); seg < 3; seg++ {
				m, sink := newTestMuxer(t, meta, frames, tt.method, tt.interleave, seg)
				require.True(t, m.SimulationSupported())

				size, err := m.SimulateSegmentSize()
				require.NoError(t, err)
				assert.Zero(t, sink.Len(), "simulation must not write")

				require.NoError(t, m.ResetSimulation())
				runMuxer(t, m)
				assert.Equal(t, size, int64(sink.Len()), "segment %d", seg)

				first := append([]byte(nil), sink.Bytes()...)
				sink.Reset()
				require.NoError(t, m.ResetSimulation())
				runMuxer(t, m)
				assert.Equal(t, first, sink.Bytes(), "second pass of segment %d differs", seg)
			}
		})
	}
}

func TestMuxer_packets(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())
	m, sink := newTestMuxer(t, meta, frames, hls.EncryptionNone, false, 1)
	runMuxer(t, m)

	out := sink.Bytes()
	require.NotEmpty(t, out)
	require.Zero(t, len(out)%PacketSize)
	for off := 0; off < len(out); off += PacketSize {
		require.Equal(t, byte(syncByte), out[off], "packet at %d", off)
	}

	// PAT then PMT.
	assert.Equal(t, uint16(pidPAT), pid(out[0:]))
	assert.Equal(t, uint16(pidPMT), pid(out[PacketSize:]))
	assert.Equal(t, uint16(pidFirstES), pid(out[2*PacketSize:]))
}

func pid(pkt []byte) uint16 {
	return uint16(pkt[1]&0x1F)<<8 | uint16(pkt[2])
}

func TestMuxer_aes128_decrypts_to_plain_output(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())

	plain, plainSink := newTestMuxer(t, meta, frames, hls.EncryptionNone, false, 2)
	runMuxer(t, plain)

	enc, encSink := newTestMuxer(t, meta, frames, hls.EncryptionAES128, false, 2)
	runMuxer(t, enc)

	ct := encSink.Bytes()
	require.Zero(t, len(ct)%aes.BlockSize)

	key := hls.DeriveKey([]byte("secret"), "movie.mp4")
	iv := hls.SegmentIV(2)
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(pt, ct)

	pad := int(pt[len(pt)-1])
	require.True(t, pad >= 1 && pad <= aes.BlockSize)
	assert.Equal(t, plainSink.Bytes(), pt[:len(pt)-pad])
}

func TestMuxer_sample_aes_keeps_headers_clear(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())

	plain, plainSink := newTestMuxer(t, meta, frames, hls.EncryptionNone, false, 0)
	runMuxer(t, plain)
	enc, encSink := newTestMuxer(t, meta, frames, hls.EncryptionSampleAES, false, 0)
	runMuxer(t, enc)

	a, b := plainSink.Bytes(), encSink.Bytes()
	require.Equal(t, len(a), len(b))
	assert.Equal(t, a[:2*PacketSize], b[:2*PacketSize], "PAT and PMT are never encrypted")
	assert.NotEqual(t, a, b)
	for off := 0; off < len(b); off += PacketSize {
		require.Equal(t, a[off:off+4], b[off:off+4], "packet header at %d", off)
	}
}

func TestMuxer_interleaved_encryption_not_simulated(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())

	for _, method := range []hls.EncryptionMethod{hls.EncryptionAES128, hls.EncryptionSampleAES} {
		m, sink := newTestMuxer(t, meta, frames, method, true, 0)
		assert.False(t, m.SimulationSupported(), method.String())
		_, err := m.SimulateSegmentSize()
		assert.Error(t, err)

		runMuxer(t, m)
		assert.NotZero(t, sink.Len())
	}
}

func TestMuxer_interleaved_order(t *testing.T) {
	meta, _ := newTestStream(t, mediatest.DefaultOptions())
	m, _ := newTestMuxer(t, meta, nil, hls.EncryptionNone, true, 0)
	for i := 1; i < len(m.order); i++ {
		require.LessOrEqual(t, m.order[i-1].dts, m.order[i].dts)
	}

	m, _ = newTestMuxer(t, meta, nil, hls.EncryptionNone, false, 0)
	video := len(m.streams[0].frames)
	for i := 0; i < video; i++ {
		require.Equal(t, 0, m.order[i].stream)
	}
	assert.Equal(t, 1, m.order[video].stream)
}

func TestNew_errors(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())

	_, err := New(hls.MuxerParams{SegmentIndex: 3, Segmenter: testSegmenter, Metadata: meta, Frames: frames})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, hls.HTTPStatus(err))

	_, err = New(hls.MuxerParams{Segmenter: testSegmenter, Metadata: &media.StreamMetadata{}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, hls.HTTPStatus(err))
}

func TestMuxer_sink_closed(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())
	m, err := newMuxer(hls.MuxerParams{
		Segmenter: testSegmenter,
		Metadata:  meta,
		Frames:    frames,
		Sink:      hls.SinkFunc(func([]byte) error { return hls.ErrSinkClosed }),
	})
	require.NoError(t, err)

	_, err = m.Process()
	assert.ErrorIs(t, err, hls.ErrSinkClosed)
}

func TestMuxer_short_frame(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())
	meta.Tracks[0].Frames[0].Offset = 1 << 30
	m, _ := newTestMuxer(t, meta, frames, hls.EncryptionNone, false, 0)

	_, err := m.Process()
	require.NoError(t, err)
	_, err = m.Process()
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, hls.HTTPStatus(err))
}

func TestMuxer_simulation_allocations(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.Options{Seconds: 60})

	for _, method := range []hls.EncryptionMethod{hls.EncryptionNone, hls.EncryptionAES128} {
		m, _ := newTestMuxer(t, meta, frames, method, false, 2)
		allocs := testing.AllocsPerRun(5, func() {
			_, err := m.SimulateSegmentSize()
			require.NoError(t, err)
		})
		assert.Less(t, allocs, float64(len(m.order))/10, "%v: simulation allocates per frame", method)
	}
}
