package media

import "fmt"

// MediaType identifies the kind of elementary stream carried by a track.
type MediaType int

const (
	MediaTypeVideo MediaType = iota + 1
	MediaTypeAudio
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	default:
		return fmt.Sprintf("MediaType(%d)", int(t))
	}
}

// Rational is a num/denom pair, used for frame rates and playback speed.
type Rational struct {
	Num   uint32 `json:"num"`
	Denom uint32 `json:"denom"`
}

// IsUnity reports whether the ratio is 1:1. A zero value counts as unity.
func (r Rational) IsUnity() bool {
	return r.Num == r.Denom
}

// Float returns the ratio as a float64, or 0 when the denominator is zero.
func (r Rational) Float() float64 {
	if r.Denom == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Denom)
}

// Frame locates a single coded frame inside the stream's data file.
type Frame struct {
	Offset   int64  `json:"offset"`
	Size     uint32 `json:"size"`
	Duration uint32 `json:"duration"` // in track timescale units
	PTSDelay uint32 `json:"pts_delay,omitempty"`
	KeyFrame bool   `json:"key_frame,omitempty"`
}

// Track describes one elementary stream of a media file.
type Track struct {
	Index     int       `json:"index"`
	MediaType MediaType `json:"media_type"`
	Codec     string    `json:"codec"`
	Timescale uint32    `json:"timescale"`
	FrameRate Rational  `json:"frame_rate"`
	Speed     Rational  `json:"speed"`
	Bitrate   uint32    `json:"bitrate"`
	Width     uint16    `json:"width,omitempty"`
	Height    uint16    `json:"height,omitempty"`
	Language  string    `json:"language,omitempty"`
	Frames    []Frame   `json:"frames"`

	duration uint64 // set by WithoutFrames
}

// WithoutFrames returns a copy of t without its frame table. The copy keeps
// the duration of t.
func (t Track) WithoutFrames() Track {
	t.duration = t.Duration()
	t.Frames = nil
	return t
}

// Duration returns the sum of frame durations in timescale units.
func (t *Track) Duration() uint64 {
	if t.Frames == nil {
		return t.duration
	}
	var d uint64
	for _, f := range t.Frames {
		d += uint64(f.Duration)
	}
	return d
}

// DurationMillis returns the track duration in milliseconds.
func (t *Track) DurationMillis() uint64 {
	if t.Timescale == 0 {
		return 0
	}
	return t.Duration() * 1000 / uint64(t.Timescale)
}

// StreamMetadata is the parsed, read-only description of a media file.
// Tracks are ordered; Tracks[i].Index is the position in the source file.
type StreamMetadata struct {
	URI      string  `json:"-"`
	DataPath string  `json:"data_path"`
	Tracks   []Track `json:"tracks"`
}

// TracksOf returns the tracks of the given media type in order.
func (m *StreamMetadata) TracksOf(t MediaType) []*Track {
	var out []*Track
	for i := range m.Tracks {
		if m.Tracks[i].MediaType == t {
			out = append(out, &m.Tracks[i])
		}
	}
	return out
}

// DurationMillis is the longest track duration in milliseconds.
func (m *StreamMetadata) DurationMillis() uint64 {
	var max uint64
	for i := range m.Tracks {
		if d := m.Tracks[i].DurationMillis(); d > max {
			max = d
		}
	}
	return max
}
