// Package playlist builds HLS playlist text from stream metadata.
package playlist

import (
	"fmt"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
	"hls-packager/internal/mux"
)

// firstMediaSequence is the media sequence of segment 0. Players that see
// no IV attribute use the sequence number as IV, which therefore has to
// equal the one-based ordinal carried by hls.SegmentIV.
const firstMediaSequence = 1

// Builder implements hls.PlaylistBuilder on top of the m3u8 library.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildMasterPlaylist implements hls.PlaylistBuilder. Each video track
// becomes a variant paired with the first audio track; audio-only streams
// get one variant per audio track.
func (b *Builder) BuildMasterPlaylist(in hls.MasterPlaylistInput) ([]byte, error) {
	videos := in.Metadata.TracksOf(media.MediaTypeVideo)
	audios := in.Metadata.TracksOf(media.MediaTypeAudio)
	if len(videos) == 0 && len(audios) == 0 {
		return nil, hls.NewStatusError(hls.StatusBadData, "no tracks to list")
	}

	p := m3u8.NewMasterPlaylist()
	if len(videos) == 0 {
		for i, a := range audios {
			suffix := ""
			if in.MultiURI || len(audios) > 1 {
				suffix = fmt.Sprintf("-a%d", i+1)
			}
			p.Append(in.BaseURL+in.Names.IndexPrefix+suffix+hls.ManifestExt, nil, m3u8.VariantParams{
				Bandwidth: a.Bitrate,
				Codecs:    a.Codec,
			})
		}
		return p.Encode().Bytes(), nil
	}

	for i, v := range videos {
		suffix := ""
		if in.MultiURI || len(videos) > 1 {
			suffix = fmt.Sprintf("-v%d", i+1)
			if len(audios) > 0 {
				suffix += "-a1"
			}
		}
		params := m3u8.VariantParams{
			Bandwidth: v.Bitrate,
			Codecs:    v.Codec,
			FrameRate: v.FrameRate.Float(),
		}
		if v.Width > 0 && v.Height > 0 {
			params.Resolution = fmt.Sprintf("%dx%d", v.Width, v.Height)
		}
		if len(audios) > 0 {
			params.Bandwidth += audios[0].Bitrate
			params.Codecs = strings.Join([]string{v.Codec, audios[0].Codec}, ",")
		}
		p.Append(in.BaseURL+in.Names.IndexPrefix+suffix+hls.ManifestExt, nil, params)
	}
	return p.Encode().Bytes(), nil
}

// BuildIndexPlaylist implements hls.PlaylistBuilder.
func (b *Builder) BuildIndexPlaylist(in hls.IndexPlaylistInput) ([]byte, error) {
	durations := in.Segmenter.SegmentDurations(in.Metadata)
	if len(durations) == 0 {
		return nil, hls.NewStatusError(hls.StatusBadData, "stream %s has no segments", in.Metadata.URI)
	}

	p, err := m3u8.NewMediaPlaylist(0, uint(len(durations)))
	if err != nil {
		return nil, hls.NewStatusError(hls.StatusUnexpected, "new media playlist: %v", err)
	}
	p.SeqNo = firstMediaSequence
	p.MediaType = m3u8.VOD

	if in.Encryption.Enabled() {
		keyURI := in.BaseURL + in.Names.KeyPrefix + in.TrackSuffix + hls.KeyExt
		if err := p.SetDefaultKey(in.Encryption.Method.PlaylistMethod(), keyURI, "", "", ""); err != nil {
			return nil, hls.NewStatusError(hls.StatusUnexpected, "set key: %v", err)
		}
	}

	base := in.SegmentsBaseURL
	if base == "" {
		base = in.BaseURL
	}
	for i, d := range durations {
		uri := fmt.Sprintf("%s%s-%d%s%s", base, in.Names.SegmentPrefix, i, in.TrackSuffix, hls.SegmentExt)
		if err := p.Append(uri, d, ""); err != nil {
			return nil, hls.NewStatusError(hls.StatusUnexpected, "append segment %d: %v", i, err)
		}
	}
	p.Close()
	return p.Encode().Bytes(), nil
}

// BuildIframePlaylist implements hls.PlaylistBuilder. Byte ranges point at
// the key frames inside the segments the muxer produces.
func (b *Builder) BuildIframePlaylist(in hls.IframePlaylistInput) ([]byte, error) {
	if len(in.Metadata.TracksOf(media.MediaTypeVideo)) == 0 {
		return nil, hls.NewStatusError(hls.StatusBadRequest, "stream %s has no video", in.Metadata.URI)
	}

	positions, err := mux.IframePositions(in.Muxer, in.Segmenter, in.Metadata)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, hls.NewStatusError(hls.StatusBadData, "stream %s has no key frames", in.Metadata.URI)
	}

	p, err := m3u8.NewMediaPlaylist(0, uint(len(positions)))
	if err != nil {
		return nil, hls.NewStatusError(hls.StatusUnexpected, "new media playlist: %v", err)
	}
	p.SeqNo = firstMediaSequence
	p.MediaType = m3u8.VOD
	p.SetIframeOnly()

	for _, pos := range positions {
		seg := &m3u8.MediaSegment{
			URI:      fmt.Sprintf("%s%s-%d%s%s", in.BaseURL, in.Names.SegmentPrefix, pos.SegmentIndex, in.TrackSuffix, hls.SegmentExt),
			Duration: pos.Duration,
			Limit:    pos.Size,
			Offset:   pos.Offset,
		}
		if err := p.AppendSegment(seg); err != nil {
			return nil, hls.NewStatusError(hls.StatusUnexpected, "append iframe: %v", err)
		}
	}
	p.Close()
	return p.Encode().Bytes(), nil
}
