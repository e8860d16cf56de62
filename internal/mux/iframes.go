package mux

import (
	"hls-packager/internal/hls"
	"hls-packager/internal/media"
)

// IframePosition locates one key frame inside a segment's TS output.
type IframePosition struct {
	SegmentIndex uint32
	Offset       int64
	Size         int64
	Duration     float64 // seconds until the next key frame
}

// IframePositions simulates every segment of meta without encryption and
// reports where the key frames of its first video track land. The returned
// byte ranges match the segments produced by New for the same inputs.
func IframePositions(cfg hls.MuxerConfig, seg media.Segmenter, meta *media.StreamMetadata) ([]IframePosition, error) {
	videos := meta.TracksOf(media.MediaTypeVideo)
	if len(videos) == 0 {
		return nil, nil
	}
	video := videos[0]
	durations := keyFrameDurations(video)

	var out []IframePosition
	count := seg.SegmentCount(meta)
	for i := uint32(0); i < count; i++ {
		m, err := newMuxer(hls.MuxerParams{
			Config:       cfg,
			SegmentIndex: i,
			Segmenter:    seg,
			Metadata:     meta,
		})
		if err != nil {
			return nil, err
		}
		m.onFrame = func(fi frameInfo) {
			if fi.stream.track != video || !video.Frames[fi.index].KeyFrame {
				return
			}
			out = append(out, IframePosition{
				SegmentIndex: i,
				Offset:       fi.offset,
				Size:         fi.size,
				Duration:     durations[fi.index],
			})
		}
		if _, err := m.SimulateSegmentSize(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// keyFrameDurations maps each key frame index to the time in seconds until
// the next key frame or the end of the track.
func keyFrameDurations(t *media.Track) map[int]float64 {
	out := make(map[int]float64)
	last := -1
	var lastTime, clock uint64
	for i, f := range t.Frames {
		if f.KeyFrame {
			if last >= 0 {
				out[last] = float64(clock-lastTime) / float64(t.Timescale)
			}
			last, lastTime = i, clock
		}
		clock += uint64(f.Duration)
	}
	if last >= 0 {
		out[last] = float64(clock-lastTime) / float64(t.Timescale)
	}
	return out
}
