package server

import (
	"net/http"
	"path"
	"strings"
)

// urlResolver derives absolute base URLs from the incoming request.
type urlResolver struct {
	r               *http.Request
	httpsHeaderName string
	segmentsBaseURL string
}

func (u urlResolver) scheme() string {
	if u.httpsHeaderName != "" && u.r.Header.Get(u.httpsHeaderName) != "" {
		return "https"
	}
	if u.r.TLS != nil {
		return "https"
	}
	if p := u.r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		return p
	}
	return "http"
}

func (u urlResolver) dir() string {
	d := path.Dir(u.r.URL.Path)
	if !strings.HasSuffix(d, "/") {
		d += "/"
	}
	return d
}

// PlaylistBaseURL implements hls.URLResolver.
func (u urlResolver) PlaylistBaseURL() string {
	return u.scheme() + "://" + u.r.Host + u.dir()
}

// SegmentsBaseURL implements hls.URLResolver. A configured segments base URL
// replaces the origin; it may carry its own scheme.
func (u urlResolver) SegmentsBaseURL() string {
	base := strings.TrimSuffix(u.segmentsBaseURL, "/")
	switch {
	case base == "":
		return u.PlaylistBaseURL()
	case strings.Contains(base, "://"):
		return base + u.dir()
	default:
		return u.scheme() + "://" + base + u.dir()
	}
}
