package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
	"hls-packager/internal/platform/logger"
	"hls-packager/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the packager over HTTP using go-chi.
type Handler struct {
	svc     *Service
	frames  hls.FrameReader
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, frame reader,
// Logger, and optional Metrics. Metrics may be nil to disable metric
// recording (e.g. in tests).
func NewHandler(svc *Service, frames hls.FrameReader, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, frames: frames, log: log, metrics: m}
}

// Routes mounts the artifact endpoint on r. The media URI may span several
// path elements; the last element names the artifact.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/*", h.ServeArtifact)
	r.Head("/*", h.ServeArtifact)
}

// ServeArtifact handles GET /{location}/{media...}/{file}.
func (h *Handler) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	log := logger.FromContext(r.Context(), h.log)
	mediaURI, file, ok := splitArtifactPath(chi.URLParam(r, "*"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rc, err := h.svc.Resolve(r.Context(), mediaURI, file)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	rc.URLs = h.svc.URLs(r)
	log = log.With(slog.String("media", mediaURI), slog.String("kind", rc.Request.Kind.String()))

	if rc.Request.Kind == hls.KindSegment {
		h.serveSegment(w, r, log, rc)
		return
	}

	resp, err := h.svc.Packager().Handle(rc)
	if err != nil {
		h.fail(w, log, err)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(resp.Body)
	}
	h.incArtifact(rc.Request.Kind)
}

func (h *Handler) serveSegment(w http.ResponseWriter, r *http.Request, log *slog.Logger, rc *hls.RequestContext) {
	sink := newResponseSink(r.Context(), w)
	pipe, contentType, err := h.svc.Packager().InitSegment(rc, h.frames, sink)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	defer pipe.Close()

	w.Header().Set("Content-Type", contentType)
	size, known := pipe.EstimatedSize()
	if known {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	} else if h.metrics != nil {
		h.metrics.IncUnsimulatedSegments()
	}
	w.WriteHeader(http.StatusOK)
	h.incArtifact(rc.Request.Kind)
	if r.Method == http.MethodHead {
		return
	}

	for {
		done, err := pipe.Step()
		if err != nil {
			if errors.Is(err, hls.ErrSinkClosed) {
				log.Debug("client went away", slog.Int64("written", pipe.Written()))
			} else {
				log.Error("segment streaming failed", slog.String("error", err.Error()))
			}
			h.addSegmentBytes(pipe.Written())
			return
		}
		if done {
			break
		}
	}

	h.addSegmentBytes(pipe.Written())
	if known && pipe.Written() != size {
		log.Error("segment size differs from simulation",
			slog.Int64("simulated", size),
			slog.Int64("written", pipe.Written()))
		if h.metrics != nil {
			h.metrics.IncSegmentSizeMismatch()
		}
	}
}

// fail maps err to a status code, logs it, and writes the error response.
func (h *Handler) fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status, category := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", slog.String("category", category), slog.String("error", err.Error()))
	case category == hls.CategoryClassification.String(), category == hls.CategoryValidation.String():
		log.Error("request rejected", slog.String("category", category), slog.String("error", err.Error()))
	default:
		log.Info("request rejected", slog.String("category", category), slog.String("error", err.Error()))
	}
	if h.metrics != nil {
		h.metrics.IncFailure(category)
	}
	http.Error(w, http.StatusText(status), status)
}

// splitArtifactPath splits "a/b/movie.mp4/index.m3u8" into the media URI
// "a/b/movie.mp4" and the file name "index.m3u8".
func splitArtifactPath(p string) (mediaURI, file string, ok bool) {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 || i == len(p)-1 {
		return "", "", false
	}
	return p[:i], p[i+1:], true
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, media.ErrNotFound), errors.Is(err, ErrNoTracks):
		return http.StatusNotFound, "media"
	case errors.Is(err, media.ErrInvalidDescriptor):
		return http.StatusInternalServerError, "media"
	}
	return hls.HTTPStatus(err), hls.CategoryOf(err).String()
}

func (h *Handler) incArtifact(kind hls.RequestKind) {
	if h.metrics != nil {
		h.metrics.IncArtifact(kind.Descriptor().Class.String(), kind.String())
	}
}

func (h *Handler) addSegmentBytes(n int64) {
	if h.metrics != nil {
		h.metrics.AddSegmentBytes(n)
	}
}
