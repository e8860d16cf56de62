package media

import "time"

// DefaultSegmentDuration is used when a Segmenter has no duration set.
const DefaultSegmentDuration = 10 * time.Second

// Segmenter splits a stream into fixed-duration segments on the media timeline.
type Segmenter struct {
	SegmentDuration time.Duration
}

func (s Segmenter) durationMillis() uint64 {
	if s.SegmentDuration <= 0 {
		return uint64(DefaultSegmentDuration.Milliseconds())
	}
	return uint64(s.SegmentDuration.Milliseconds())
}

// SegmentCount returns the number of segments needed to cover meta.
func (s Segmenter) SegmentCount(meta *StreamMetadata) uint32 {
	total := meta.DurationMillis()
	if total == 0 {
		return 0
	}
	d := s.durationMillis()
	return uint32((total + d - 1) / d)
}

// SegmentDurations returns the duration of each segment in seconds.
// The last segment is shortened to the end of the stream.
func (s Segmenter) SegmentDurations(meta *StreamMetadata) []float64 {
	count := s.SegmentCount(meta)
	total := meta.DurationMillis()
	d := s.durationMillis()
	out := make([]float64, count)
	for i := range out {
		start := uint64(i) * d
		end := start + d
		if end > total {
			end = total
		}
		out[i] = float64(end-start) / 1000
	}
	return out
}

// FrameRange returns the half-open range [start, end) of t's frames whose
// presentation start falls inside segment index.
func (s Segmenter) FrameRange(t *Track, index uint32) (start, end int) {
	if t.Timescale == 0 {
		return 0, 0
	}
	d := s.durationMillis()
	from := uint64(index) * d
	to := from + d

	start, end = -1, len(t.Frames)
	var clock uint64
	for i, f := range t.Frames {
		ms := clock * 1000 / uint64(t.Timescale)
		if start < 0 && ms >= from {
			start = i
		}
		if ms >= to {
			end = i
			break
		}
		clock += uint64(f.Duration)
	}
	if start < 0 || start > end {
		return 0, 0
	}
	return start, end
}

// FrameTime returns the start time of frame i of t in timescale units.
func FrameTime(t *Track, i int) uint64 {
	var clock uint64
	for j := 0; j < i && j < len(t.Frames); j++ {
		clock += uint64(t.Frames[j].Duration)
	}
	return clock
}
