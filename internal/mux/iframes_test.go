package mux

import (
	"runtime"
	"testing"

	"hls-packager/internal/hls"
	"hls-packager/internal/media/mediatest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIframePositions(t *testing.T) {
	meta, frames := newTestStream(t, mediatest.DefaultOptions())

	for _, interleave := range []bool{false, true} {
		positions, err := IframePositions(hls.MuxerConfig{InterleaveFrames: interleave}, testSegmenter, meta)
		require.NoError(t, err)
		require.Len(t, positions, 6)

		var segs []uint32
		for _, p := range positions {
			segs = append(segs, p.SegmentIndex)
			assert.InDelta(t, 2.0, p.Duration, 1e-9)
		}
		assert.Equal(t, []uint32{0, 0, 1, 1, 2, 2}, segs)

		outputs := make(map[uint32][]byte)
		for _, p := range positions {
			out, ok := outputs[p.SegmentIndex]
			if !ok {
				m, sink := newTestMuxer(t, meta, frames, hls.EncryptionNone, interleave, p.SegmentIndex)
				runMuxer(t, m)
				out = sink.Bytes()
				outputs[p.SegmentIndex] = out
			}

			require.Zero(t, p.Offset%PacketSize)
			require.Zero(t, p.Size%PacketSize)
			require.LessOrEqual(t, p.Offset+p.Size, int64(len(out)))

			pkt := out[p.Offset:]
			assert.Equal(t, byte(syncByte), pkt[0])
			assert.Equal(t, uint16(pidFirstES), pid(pkt))
			assert.NotZero(t, pkt[1]&0x40, "payload unit start")
			assert.NotZero(t, pkt[3]&0x20, "adaptation field present")
			assert.NotZero(t, pkt[5]&0x40, "random access indicator")
			assert.Equal(t, []byte{0, 0, 1, streamIDVideo}, pkt[4+1+int(pkt[4]):][:4], "PES start code")
		}
	}
}

func TestIframePositions_audio_only(t *testing.T) {
	opts := mediatest.DefaultOptions()
	opts.VideoTracks = 0
	meta, _ := newTestStream(t, opts)

	positions, err := IframePositions(hls.MuxerConfig{}, testSegmenter, meta)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestIframePositions_allocations(t *testing.T) {
	meta, _ := mediatest.Build("/media/long.mp4", mediatest.Options{Seconds: 600})
	var mediaBytes int64
	for _, tr := range meta.Tracks {
		for _, f := range tr.Frames {
			mediaBytes += int64(f.Size)
		}
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	positions, err := IframePositions(hls.MuxerConfig{}, testSegmenter, meta)
	runtime.ReadMemStats(&after)
	require.NoError(t, err)
	require.NotEmpty(t, positions)

	allocated := int64(after.TotalAlloc - before.TotalAlloc)
	assert.Less(t, allocated, mediaBytes/2, "allocated %d bytes for %d media bytes", allocated, mediaBytes)
}
