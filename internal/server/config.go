package server

import (
	"fmt"

	"hls-packager/internal/hls"
	"hls-packager/internal/media"
	"hls-packager/internal/platform/config"
)

// PackagerConfig converts a resolved location configuration into the
// packager's configuration.
func PackagerConfig(c config.HLS) (hls.Config, error) {
	method, err := hls.ParseEncryptionMethod(c.EncryptionMethod)
	if err != nil {
		return hls.Config{}, fmt.Errorf("encryption_method: %w", err)
	}
	return hls.Config{
		Names: hls.FileNames{
			SegmentPrefix: c.SegmentFileNamePrefix,
			IndexPrefix:   c.IndexFileNamePrefix,
			IframesPrefix: c.IframesFileNamePrefix,
			MasterPrefix:  c.MasterFileNamePrefix,
			KeyPrefix:     c.EncryptionKeyFileName,
		},
		Encryption:         method,
		AbsoluteMasterURLs: c.AbsoluteMasterURLs,
		AbsoluteIndexURLs:  c.AbsoluteIndexURLs,
		AbsoluteIframeURLs: c.AbsoluteIframeURLs,
		Muxer:              hls.MuxerConfig{InterleaveFrames: c.InterleaveFrames},
		Segmenter:          media.Segmenter{SegmentDuration: c.SegmentDuration},
	}, nil
}
