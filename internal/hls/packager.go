package hls

import (
	"fmt"
	"log/slog"

	"hls-packager/internal/media"
)

// Content types. Playlists are deliberately served as octet-stream so that
// caching proxies in front of the packager treat them as opaque bytes.
const (
	ContentTypePlaylist      = "application/octet-stream"
	ContentTypeEncryptionKey = "application/octet-stream"
	ContentTypeSegment       = "video/MP2T"
)

// Config is the packager configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	Names      FileNames
	Encryption EncryptionMethod

	AbsoluteMasterURLs bool
	AbsoluteIndexURLs  bool
	AbsoluteIframeURLs bool

	Muxer     MuxerConfig
	Segmenter media.Segmenter
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Names:              DefaultFileNames(),
		Encryption:         EncryptionNone,
		AbsoluteMasterURLs: true,
		AbsoluteIndexURLs:  true,
		AbsoluteIframeURLs: false,
		Segmenter:          media.Segmenter{SegmentDuration: media.DefaultSegmentDuration},
	}
}

// RequestContext carries everything known about one request once its file
// name is parsed and its metadata is loaded.
type RequestContext struct {
	Request      Request
	Metadata     *media.StreamMetadata
	Key          Key
	UsesMultiURI bool
	URLs         URLResolver
}

// Response is a fully built artifact.
type Response struct {
	Body        []byte
	ContentType string
}

// Packager validates requests and produces HLS artifacts through the
// playlist builder and the muxer.
type Packager struct {
	cfg      Config
	builder  PlaylistBuilder
	newMuxer MuxerFactory
	log      *slog.Logger
}

// NewPackager returns a Packager. log may be nil to discard logs.
func NewPackager(cfg Config, builder PlaylistBuilder, newMuxer MuxerFactory, log *slog.Logger) *Packager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Packager{cfg: cfg, builder: builder, newMuxer: newMuxer, log: log}
}

// Config returns the packager configuration.
func (p *Packager) Config() Config {
	return p.cfg
}

// Handle validates the request and builds the response for every kind
// except segments, which are streamed through InitSegment.
func (p *Packager) Handle(rc *RequestContext) (Response, error) {
	if err := Validate(rc.Request.Kind, p.cfg.Encryption, rc.Metadata); err != nil {
		return Response{}, err
	}
	switch rc.Request.Kind {
	case KindMasterPlaylist:
		return p.HandleMasterPlaylist(rc)
	case KindIndexPlaylist:
		return p.HandleIndexPlaylist(rc)
	case KindIframePlaylist:
		return p.HandleIframePlaylist(rc)
	case KindEncryptionKey:
		return p.HandleEncryptionKey(rc)
	case KindSegment:
		return Response{}, &Error{Category: CategoryUnexpected, Status: StatusUnexpected, Message: "segment requests are streamed"}
	default:
		return Response{}, classificationError(rc.Request.Kind.String(), ErrUnidentifiedRequest)
	}
}

// HandleMasterPlaylist builds the master playlist.
func (p *Packager) HandleMasterPlaylist(rc *RequestContext) (Response, error) {
	in := MasterPlaylistInput{
		Names:    p.cfg.Names,
		MultiURI: rc.UsesMultiURI,
		Metadata: rc.Metadata,
	}
	if p.cfg.AbsoluteMasterURLs && rc.URLs != nil {
		in.BaseURL = rc.URLs.PlaylistBaseURL()
	}

	body, err := p.builder.BuildMasterPlaylist(in)
	if err != nil {
		p.log.Debug("build master playlist failed", slog.String("error", err.Error()))
		return Response{}, builderError("build master playlist", err)
	}
	return Response{Body: body, ContentType: ContentTypePlaylist}, nil
}

// HandleIndexPlaylist builds the index playlist of the selected tracks.
func (p *Packager) HandleIndexPlaylist(rc *RequestContext) (Response, error) {
	in := IndexPlaylistInput{
		Names:       p.cfg.Names,
		MultiURI:    rc.UsesMultiURI,
		TrackSuffix: rc.Request.Selector.TrackSuffix(),
		Encryption:  DeriveEncryptionParams(p.cfg.Encryption, rc.Request.Selector.SegmentIndex, rc.Key),
		Segmenter:   p.cfg.Segmenter,
		Metadata:    rc.Metadata,
	}
	if p.cfg.AbsoluteIndexURLs && rc.URLs != nil {
		in.BaseURL = rc.URLs.PlaylistBaseURL()
		in.SegmentsBaseURL = rc.URLs.SegmentsBaseURL()
	}

	body, err := p.builder.BuildIndexPlaylist(in)
	if err != nil {
		p.log.Debug("build index playlist failed", slog.String("error", err.Error()))
		return Response{}, builderError("build index playlist", err)
	}
	return Response{Body: body, ContentType: ContentTypePlaylist}, nil
}

// HandleIframePlaylist builds the I-frame playlist. The request must have
// passed ValidateIframePlaylist.
func (p *Packager) HandleIframePlaylist(rc *RequestContext) (Response, error) {
	in := IframePlaylistInput{
		Names:       p.cfg.Names,
		MultiURI:    rc.UsesMultiURI,
		TrackSuffix: rc.Request.Selector.TrackSuffix(),
		Muxer:       p.cfg.Muxer,
		Segmenter:   p.cfg.Segmenter,
		Metadata:    rc.Metadata,
	}
	if p.cfg.AbsoluteIframeURLs && rc.URLs != nil {
		in.BaseURL = rc.URLs.PlaylistBaseURL()
	}

	body, err := p.builder.BuildIframePlaylist(in)
	if err != nil {
		p.log.Debug("build iframe playlist failed", slog.String("error", err.Error()))
		return Response{}, builderError("build iframe playlist", err)
	}
	return Response{Body: body, ContentType: ContentTypePlaylist}, nil
}

// HandleEncryptionKey returns a fresh copy of the request's key block.
func (p *Packager) HandleEncryptionKey(rc *RequestContext) (Response, error) {
	body := make([]byte, KeySize)
	copy(body, rc.Key[:])
	return Response{Body: body, ContentType: ContentTypeEncryptionKey}, nil
}

// InitSegment allocates a muxer for the requested segment, runs the size
// simulation when the muxer supports it, and returns a pipeline ready for
// streaming into sink. When simulation is not supported the pipeline has no
// size estimate and the caller must stream without a content length.
func (p *Packager) InitSegment(rc *RequestContext, frames FrameReader, sink Sink) (*SegmentPipeline, string, error) {
	if p.newMuxer == nil {
		return nil, "", &Error{Category: CategoryAllocation, Status: StatusAllocFailed, Message: "no muxer configured"}
	}

	if err := Validate(rc.Request.Kind, p.cfg.Encryption, rc.Metadata); err != nil {
		return nil, "", err
	}

	index := rc.Request.Selector.SegmentIndex
	pipe := &SegmentPipeline{}
	m, err := p.newMuxer(MuxerParams{
		Config:       p.cfg.Muxer,
		Encryption:   DeriveEncryptionParams(p.cfg.Encryption, index, rc.Key),
		SegmentIndex: index,
		Segmenter:    p.cfg.Segmenter,
		Metadata:     rc.Metadata,
		Frames:       frames,
		Sink:         &countingSink{next: sink, p: pipe},
	})
	if err != nil {
		p.log.Debug("muxer init failed",
			slog.Uint64("segment_index", uint64(index)),
			slog.String("error", err.Error()))
		return nil, "", builderError(fmt.Sprintf("init muxer for segment %d", index), err)
	}
	pipe.muxer = m

	if m.SimulationSupported() {
		if _, err := pipe.Simulate(); err != nil {
			return nil, "", err
		}
	}
	if err := pipe.Reset(); err != nil {
		return nil, "", err
	}
	return pipe, ContentTypeSegment, nil
}

// ParseDRMInfo is not supported for HLS and always fails.
func (p *Packager) ParseDRMInfo(info []byte) (any, error) {
	p.log.Error("drm info rejected", slog.Int("size", len(info)))
	return nil, &Error{Category: CategoryUnexpected, Status: StatusUnexpected, Message: "parse drm info", Cause: ErrDRMNotImplemented}
}
