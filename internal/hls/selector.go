package hls

import (
	"fmt"
	"strconv"
	"strings"

	"hls-packager/internal/media"
)

// maxTracks bounds track numbers in a selector to the mask width.
const maxTracks = 64

// Selector is the parsed track-selection region of a file name, e.g. the
// "-3-v1-a2" of "seg-3-v1-a2.ts".
type Selector struct {
	SegmentIndex    uint32
	HasSegmentIndex bool

	// Video and Audio are 1-based track bitmasks. Zero selects every track
	// of that media type.
	Video uint64
	Audio uint64
}

// ParseSelector parses s. When expectSegmentIndex is set the first token must
// be a decimal segment index.
func ParseSelector(s string, expectSegmentIndex bool) (Selector, error) {
	var sel Selector
	tokens := strings.Split(s, "-")
	if len(tokens) > 0 && tokens[0] == "" {
		tokens = tokens[1:]
	}

	if expectSegmentIndex {
		if len(tokens) == 0 || !isDigits(tokens[0]) {
			return Selector{}, classificationError(s, ErrMissingSegmentIndex)
		}
		n, err := strconv.ParseUint(tokens[0], 10, 32)
		if err != nil {
			return Selector{}, classificationError(s, ErrMissingSegmentIndex)
		}
		sel.SegmentIndex = uint32(n)
		sel.HasSegmentIndex = true
		tokens = tokens[1:]
	}

	for _, tok := range tokens {
		if len(tok) < 2 || !isDigits(tok[1:]) {
			return Selector{}, classificationError(s, ErrInvalidSelector)
		}
		n, err := strconv.Atoi(tok[1:])
		if err != nil || n < 1 || n > maxTracks {
			return Selector{}, classificationError(s, ErrInvalidSelector)
		}
		switch tok[0] {
		case 'v':
			sel.Video |= 1 << (n - 1)
		case 'a':
			sel.Audio |= 1 << (n - 1)
		default:
			return Selector{}, classificationError(s, ErrInvalidSelector)
		}
	}
	return sel, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// TrackSuffix formats the track part of the selector, e.g. "-v1-a2".
func (s Selector) TrackSuffix() string {
	var b strings.Builder
	writeMask(&b, 'v', s.Video)
	writeMask(&b, 'a', s.Audio)
	return b.String()
}

func writeMask(b *strings.Builder, c byte, mask uint64) {
	for i := 0; i < maxTracks; i++ {
		if mask&(1<<i) != 0 {
			fmt.Fprintf(b, "-%c%d", c, i+1)
		}
	}
}

// Apply returns a copy of meta holding only the selected tracks. With
// singlePerType only the first selected track of each media type is kept.
// The result shares frame slices with meta.
func (s Selector) Apply(meta *media.StreamMetadata, singlePerType bool) *media.StreamMetadata {
	out := &media.StreamMetadata{URI: meta.URI, DataPath: meta.DataPath}
	var video, audio int
	for _, t := range meta.Tracks {
		var n int
		var mask uint64
		switch t.MediaType {
		case media.MediaTypeVideo:
			video++
			n, mask = video, s.Video
		case media.MediaTypeAudio:
			audio++
			n, mask = audio, s.Audio
		default:
			continue
		}
		if mask != 0 && (n > maxTracks || mask&(1<<(n-1)) == 0) {
			continue
		}
		if singlePerType && hasType(out, t.MediaType) {
			continue
		}
		out.Tracks = append(out.Tracks, t)
	}
	return out
}

func hasType(m *media.StreamMetadata, t media.MediaType) bool {
	for i := range m.Tracks {
		if m.Tracks[i].MediaType == t {
			return true
		}
	}
	return false
}
