package hls

import (
	"hls-packager/internal/media"
)

// PlaylistBuilder turns validated stream metadata into playlist text.
// Failures should carry a Status, see NewStatusError.
type PlaylistBuilder interface {
	BuildMasterPlaylist(in MasterPlaylistInput) ([]byte, error)
	BuildIndexPlaylist(in IndexPlaylistInput) ([]byte, error)
	BuildIframePlaylist(in IframePlaylistInput) ([]byte, error)
}

// MasterPlaylistInput is passed to PlaylistBuilder.BuildMasterPlaylist.
type MasterPlaylistInput struct {
	Names    FileNames
	BaseURL  string // empty for relative URIs
	MultiURI bool
	Metadata *media.StreamMetadata
}

// IndexPlaylistInput is passed to PlaylistBuilder.BuildIndexPlaylist.
type IndexPlaylistInput struct {
	Names           FileNames
	BaseURL         string
	SegmentsBaseURL string
	MultiURI        bool
	TrackSuffix     string
	Encryption      EncryptionParams
	Segmenter       media.Segmenter
	Metadata        *media.StreamMetadata
}

// IframePlaylistInput is passed to PlaylistBuilder.BuildIframePlaylist.
type IframePlaylistInput struct {
	Names       FileNames
	BaseURL     string
	MultiURI    bool
	TrackSuffix string
	Muxer       MuxerConfig
	Segmenter   media.Segmenter
	Metadata    *media.StreamMetadata
}

// MuxerConfig controls transport-stream generation.
type MuxerConfig struct {
	// InterleaveFrames orders frames of all tracks by decode time instead
	// of writing tracks one after another.
	InterleaveFrames bool
}

// FrameReader reads frame payloads, typically through a shared cache.
type FrameReader interface {
	ReadFrame(path string, offset int64, size uint32) ([]byte, error)
}

// Sink receives segment bytes in order. p is only valid for the duration of
// the call. Returning an error (conventionally ErrSinkClosed) tells the
// producer to stop.
type Sink interface {
	WriteTail(p []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(p []byte) error

// WriteTail implements Sink.
func (f SinkFunc) WriteTail(p []byte) error { return f(p) }

// MuxerParams are the inputs of a MuxerFactory.
type MuxerParams struct {
	Config       MuxerConfig
	Encryption   EncryptionParams
	SegmentIndex uint32 // zero-based; the IV carries SegmentIndex+1
	Segmenter    media.Segmenter
	Metadata     *media.StreamMetadata
	Frames       FrameReader
	Sink         Sink
}

// Muxer produces one transport-stream segment.
//
// When SimulationSupported is true, SimulateSegmentSize runs a dry pass and
// ResetSimulation rewinds every cursor so that the following Process calls
// reproduce exactly that many bytes.
type Muxer interface {
	SimulationSupported() bool
	SimulateSegmentSize() (int64, error)
	ResetSimulation() error

	// Process writes the next chunk to the sink and reports whether the
	// segment is complete.
	Process() (done bool, err error)
}

// MuxerFactory allocates and initializes a Muxer.
type MuxerFactory func(p MuxerParams) (Muxer, error)

// URLResolver supplies absolute base URLs for playlist URIs.
type URLResolver interface {
	// PlaylistBaseURL is the absolute URL of the directory holding the
	// requested playlist, with a trailing slash.
	PlaylistBaseURL() string

	// SegmentsBaseURL is where segments are served from; it may be a
	// different origin than the playlist.
	SegmentsBaseURL() string
}
