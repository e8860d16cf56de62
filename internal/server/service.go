package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
)

// ErrNoTracks is returned when the track selector matches no track.
var ErrNoTracks = errors.New("no tracks matched the selector")

// Service resolves request file names into packager request contexts for
// one location.
type Service struct {
	repo            media.Repository
	packager        *hls.Packager
	secret          []byte
	httpsHeaderName string
	segmentsBaseURL string
}

// ServiceOptions are the host-level settings of a location.
type ServiceOptions struct {
	SecretKey       string
	HTTPSHeaderName string
	SegmentsBaseURL string
}

// NewService returns a Service serving media from repo through packager.
func NewService(repo media.Repository, packager *hls.Packager, opts ServiceOptions) *Service {
	return &Service{
		repo:            repo,
		packager:        packager,
		secret:          []byte(opts.SecretKey),
		httpsHeaderName: opts.HTTPSHeaderName,
		segmentsBaseURL: opts.SegmentsBaseURL,
	}
}

// Packager returns the location's packager.
func (s *Service) Packager() *hls.Packager {
	return s.packager
}

// Resolve classifies file, loads the metadata of mediaURI, and selects the
// requested tracks at the detail the request kind needs.
func (s *Service) Resolve(ctx context.Context, mediaURI, file string) (*hls.RequestContext, error) {
	req, err := hls.ParseRequest(file, s.packager.Config().Names)
	if err != nil {
		return nil, err
	}

	meta, err := s.repo.Get(ctx, mediaURI)
	if err != nil {
		return nil, err
	}

	desc := req.Kind.Descriptor()
	selected := req.Selector.Apply(meta, desc.SingleStreamPerMediaType)
	if len(selected.Tracks) == 0 {
		return nil, fmt.Errorf("%s: %w", file, ErrNoTracks)
	}
	selected = desc.ParseMode.Project(selected)

	return &hls.RequestContext{
		Request:      req,
		Metadata:     selected,
		Key:          hls.DeriveKey(s.secret, mediaURI),
		UsesMultiURI: strings.Contains(mediaURI, ","),
	}, nil
}

// URLs returns the base URL resolver for r.
func (s *Service) URLs(r *http.Request) hls.URLResolver {
	return urlResolver{r: r, httpsHeaderName: s.httpsHeaderName, segmentsBaseURL: s.segmentsBaseURL}
}
