// Package mediatest writes synthetic streams for tests.
package mediatest

import (
	"encoding/json"
	"fmt"
	"path"

	"hls-packager/internal/media"

	"github.com/spf13/afero"
)

// Options shapes a synthetic stream. Zero fields take the defaults of
// DefaultOptions.
type Options struct {
	Seconds      int
	VideoTracks  int
	AudioTracks  int
	FPS          int // video frames per second at a 90 kHz timescale
	KeyInterval  int // video frames between key frames
	BFrameDelay  uint32
	AudioSpeed   media.Rational
	SampleRate   int // audio timescale; frames carry 1024 samples
	VideoBitrate uint32
}

// DefaultOptions is a 12 second stream with one video and one audio track.
func DefaultOptions() Options {
	return Options{
		Seconds:      12,
		VideoTracks:  1,
		AudioTracks:  1,
		FPS:          25,
		KeyInterval:  50,
		SampleRate:   48000,
		VideoBitrate: 800000,
	}
}

const samplesPerAudioFrame = 1024

// Build returns the metadata of a synthetic stream whose frames live in the
// data file at dataPath, together with the data file contents. Every frame is
// filled with a byte pattern derived from its offset.
func Build(dataPath string, opts Options) (*media.StreamMetadata, []byte) {
	def := DefaultOptions()
	if opts.Seconds == 0 {
		opts.Seconds = def.Seconds
	}
	if opts.FPS == 0 {
		opts.FPS = def.FPS
	}
	if opts.KeyInterval == 0 {
		opts.KeyInterval = def.KeyInterval
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = def.SampleRate
	}
	if opts.VideoBitrate == 0 {
		opts.VideoBitrate = def.VideoBitrate
	}

	meta := &media.StreamMetadata{DataPath: dataPath}
	var offset int64
	for v := 0; v < opts.VideoTracks; v++ {
		t := media.Track{
			MediaType: media.MediaTypeVideo,
			Codec:     "avc1.64001f",
			Timescale: 90000,
			FrameRate: media.Rational{Num: uint32(opts.FPS), Denom: 1},
			Bitrate:   opts.VideoBitrate * uint32(v+1),
			Width:     uint16(640 * (v + 1)),
			Height:    uint16(360 * (v + 1)),
		}
		n := opts.Seconds * opts.FPS
		for i := 0; i < n; i++ {
			size := uint32(400 + (i%7)*131 + v*17)
			key := i%opts.KeyInterval == 0
			if key {
				size += 2000
			}
			t.Frames = append(t.Frames, media.Frame{
				Offset:   offset,
				Size:     size,
				Duration: uint32(90000 / opts.FPS),
				PTSDelay: opts.BFrameDelay,
				KeyFrame: key,
			})
			offset += int64(size)
		}
		meta.Tracks = append(meta.Tracks, t)
	}
	for a := 0; a < opts.AudioTracks; a++ {
		t := media.Track{
			MediaType: media.MediaTypeAudio,
			Codec:     "mp4a.40.2",
			Timescale: uint32(opts.SampleRate),
			Speed:     opts.AudioSpeed,
			Bitrate:   128000,
			Language:  fmt.Sprintf("a%d", a+1),
		}
		// Stop before the video end so the audio never opens an extra segment.
		n := opts.Seconds * opts.SampleRate / samplesPerAudioFrame
		for i := 0; i < n; i++ {
			size := uint32(200 + (i%5)*23)
			t.Frames = append(t.Frames, media.Frame{
				Offset:   offset,
				Size:     size,
				Duration: samplesPerAudioFrame,
				KeyFrame: true,
			})
			offset += int64(size)
		}
		meta.Tracks = append(meta.Tracks, t)
	}
	for i := range meta.Tracks {
		meta.Tracks[i].Index = i
	}

	data := make([]byte, offset)
	for i := range data {
		data[i] = byte(i*31 + i>>8)
	}
	return meta, data
}

// Write stores a synthetic stream named name under root on fsys: the data
// file at root/name and its descriptor at root/name.json. It returns the
// metadata as a DescriptorRepository would load it.
func Write(fsys afero.Fs, root, name string, opts Options) (*media.StreamMetadata, error) {
	dataPath := path.Join(root, name)
	meta, data := Build(dataPath, opts)

	if err := fsys.MkdirAll(path.Dir(dataPath), 0o755); err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fsys, dataPath, data, 0o644); err != nil {
		return nil, err
	}

	desc := *meta
	desc.DataPath = ""
	b, err := json.Marshal(&desc)
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fsys, dataPath+media.DescriptorExt, b, 0o644); err != nil {
		return nil, err
	}
	meta.URI = name
	return meta, nil
}
