package server

import (
	"context"
	"fmt"
	"net/http"

	"hls-packager/internal/hls"
)

// responseSink streams segment chunks to the client, flushing after each
// chunk. It reports hls.ErrSinkClosed once the client has gone away.
type responseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

func newResponseSink(ctx context.Context, w http.ResponseWriter) *responseSink {
	f, _ := w.(http.Flusher)
	return &responseSink{ctx: ctx, w: w, flusher: f}
}

// WriteTail implements hls.Sink.
func (s *responseSink) WriteTail(p []byte) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", hls.ErrSinkClosed, err)
	}
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("%w: %v", hls.ErrSinkClosed, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
