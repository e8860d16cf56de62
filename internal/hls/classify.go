package hls

import (
	"strings"
)

// File extensions recognized by the classifier. They are case-sensitive.
const (
	SegmentExt  = ".ts"
	ManifestExt = ".m3u8"
	KeyExt      = ".key"
)

// FileNames holds the configurable file-name prefixes.
type FileNames struct {
	SegmentPrefix string
	IndexPrefix   string
	IframesPrefix string
	MasterPrefix  string
	KeyPrefix     string
}

// DefaultFileNames returns the stock prefixes.
func DefaultFileNames() FileNames {
	return FileNames{
		SegmentPrefix: "seg",
		IndexPrefix:   "index",
		IframesPrefix: "iframes",
		MasterPrefix:  "master",
		KeyPrefix:     "encryption",
	}
}

// ClassifiedRequest is the result of Classify. Remaining is the track
// selector region with the prefix and extension removed.
type ClassifiedRequest struct {
	Kind      RequestKind
	Remaining string
}

// Classify determines the artifact kind from the last path component.
// Segments are tried first, then playlists, then keys.
func Classify(tail string, names FileNames) (ClassifiedRequest, error) {
	if matchPrefixSuffix(tail, names.SegmentPrefix, SegmentExt) {
		return ClassifiedRequest{
			Kind:      KindSegment,
			Remaining: tail[len(names.SegmentPrefix) : len(tail)-len(SegmentExt)],
		}, nil
	}

	if strings.HasSuffix(tail, ManifestExt) {
		head := strings.TrimSuffix(tail, ManifestExt)
		for _, c := range []struct {
			prefix string
			kind   RequestKind
		}{
			{names.IndexPrefix, KindIndexPlaylist},
			{names.IframesPrefix, KindIframePlaylist},
			{names.MasterPrefix, KindMasterPlaylist},
		} {
			if strings.HasPrefix(head, c.prefix) {
				return ClassifiedRequest{Kind: c.kind, Remaining: head[len(c.prefix):]}, nil
			}
		}
		return ClassifiedRequest{}, classificationError(tail, ErrUnidentifiedManifestRequest)
	}

	if matchPrefixSuffix(tail, names.KeyPrefix, KeyExt) {
		return ClassifiedRequest{
			Kind:      KindEncryptionKey,
			Remaining: tail[len(names.KeyPrefix) : len(tail)-len(KeyExt)],
		}, nil
	}

	return ClassifiedRequest{}, classificationError(tail, ErrUnidentifiedRequest)
}

// matchPrefixSuffix reports whether s is prefix + anything + suffix with the
// two not overlapping.
func matchPrefixSuffix(s, prefix, suffix string) bool {
	return len(s) >= len(prefix)+len(suffix) &&
		strings.HasPrefix(s, prefix) &&
		strings.HasSuffix(s, suffix)
}

// Request is a fully parsed request file name.
type Request struct {
	Kind     RequestKind
	Selector Selector
}

// ParseRequest classifies tail and parses its selector. Segment requests
// must carry a segment index.
func ParseRequest(tail string, names FileNames) (Request, error) {
	c, err := Classify(tail, names)
	if err != nil {
		return Request{}, err
	}
	sel, err := ParseSelector(c.Remaining, c.Kind.Descriptor().ExpectSegmentIndex)
	if err != nil {
		return Request{}, err
	}
	return Request{Kind: c.Kind, Selector: sel}, nil
}
