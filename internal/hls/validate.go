package hls

import (
	"hls-packager/internal/media"
)

// Validate checks the preconditions of kind against the stream metadata and
// encryption method. Only I-frame playlists have any.
func Validate(kind RequestKind, method EncryptionMethod, meta *media.StreamMetadata) error {
	switch kind {
	case KindIframePlaylist:
		return ValidateIframePlaylist(method, meta)
	case KindMasterPlaylist, KindIndexPlaylist, KindEncryptionKey, KindSegment:
		return nil
	default:
		return classificationError(kind.String(), ErrUnidentifiedRequest)
	}
}

// ValidateIframePlaylist rejects I-frame playlists on encrypted streams and
// on streams whose audio plays at a changed speed; I-frame timing assumes
// untouched audio timestamps.
func ValidateIframePlaylist(method EncryptionMethod, meta *media.StreamMetadata) error {
	if method != EncryptionNone {
		return validationError("iframe playlist", ErrEncryptionNotSupported)
	}
	for i := range meta.Tracks {
		t := &meta.Tracks[i]
		if t.MediaType == media.MediaTypeAudio && !t.Speed.IsUnity() {
			return validationError("iframe playlist", ErrAudioSpeedChangeNotSupported)
		}
	}
	return nil
}
