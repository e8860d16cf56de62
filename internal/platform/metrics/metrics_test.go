package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncArtifact("segment", "segment")
	m.IncArtifact("segment", "segment")
	m.IncArtifact("manifest", "index_playlist")
	m.IncFailure("validation")
	m.AddSegmentBytes(1880)

	body := scrape(t, m.Handler(func() {
		m.SetCachedDescriptors(3)
		m.SetCachedFrameBlocks(7)
	}))

	for _, want := range []string{
		`hls_artifacts_total{class="segment",kind="segment"} 2`,
		`hls_artifacts_total{class="manifest",kind="index_playlist"} 1`,
		`hls_failures_total{category="validation"} 1`,
		`hls_segment_bytes_total 1880`,
		`hls_cached_descriptors 3`,
		`hls_cached_frame_blocks 7`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	for _, p := range []string{"/ok", "/missing", "/ok"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	body := scrape(t, m.Handler(nil))
	if !strings.Contains(body, "hls_requests_total 3") {
		t.Error("expected 3 requests")
	}
	if !strings.Contains(body, "hls_errors_total 1") {
		t.Error("expected 1 error")
	}
}
