package hls

import (
	"fmt"

	"hls-packager/internal/media"
)

// RequestKind is the artifact a request asks for.
type RequestKind int

const (
	KindMasterPlaylist RequestKind = iota + 1
	KindIndexPlaylist
	KindIframePlaylist
	KindEncryptionKey
	KindSegment
)

// Kinds lists every RequestKind.
var Kinds = []RequestKind{
	KindMasterPlaylist,
	KindIndexPlaylist,
	KindIframePlaylist,
	KindEncryptionKey,
	KindSegment,
}

func (k RequestKind) String() string {
	switch k {
	case KindMasterPlaylist:
		return "master_playlist"
	case KindIndexPlaylist:
		return "index_playlist"
	case KindIframePlaylist:
		return "iframe_playlist"
	case KindEncryptionKey:
		return "encryption_key"
	case KindSegment:
		return "segment"
	default:
		return fmt.Sprintf("RequestKind(%d)", int(k))
	}
}

// ParseMode tells the metadata reader how much of the media file to parse.
type ParseMode int

const (
	ParseBasicMetadata ParseMode = iota + 1
	ParseCodecNames
	ParseFramesWithoutOffsets
	ParseAllFrames
)

// Project returns the part of meta a request parsed with mode may see.
// Basic metadata and codec names carry no frame table; the other modes
// return meta itself.
func (m ParseMode) Project(meta *media.StreamMetadata) *media.StreamMetadata {
	switch m {
	case ParseBasicMetadata, ParseCodecNames:
		out := &media.StreamMetadata{URI: meta.URI, DataPath: meta.DataPath, Tracks: make([]media.Track, len(meta.Tracks))}
		for i := range meta.Tracks {
			out.Tracks[i] = meta.Tracks[i].WithoutFrames()
		}
		return out
	default:
		return meta
	}
}

// RequestClass groups kinds for caching and accounting purposes.
type RequestClass int

const (
	ClassOther RequestClass = iota
	ClassManifest
	ClassSegment
)

func (c RequestClass) String() string {
	switch c {
	case ClassOther:
		return "other"
	case ClassManifest:
		return "manifest"
	case ClassSegment:
		return "segment"
	default:
		return fmt.Sprintf("RequestClass(%d)", int(c))
	}
}

// Descriptor holds the upstream requirements of a RequestKind.
type Descriptor struct {
	ParseMode ParseMode
	Class     RequestClass

	// SingleStreamPerMediaType limits selection to one track per media type.
	SingleStreamPerMediaType bool

	// ExpectSegmentIndex makes the segment ordinal mandatory in the selector.
	ExpectSegmentIndex bool
}

// Descriptor returns the requirements of k. It panics on an unknown kind.
func (k RequestKind) Descriptor() Descriptor {
	switch k {
	case KindMasterPlaylist:
		return Descriptor{ParseMode: ParseCodecNames, Class: ClassOther}
	case KindIndexPlaylist:
		return Descriptor{ParseMode: ParseBasicMetadata, Class: ClassManifest, SingleStreamPerMediaType: true}
	case KindIframePlaylist:
		return Descriptor{ParseMode: ParseFramesWithoutOffsets, Class: ClassOther, SingleStreamPerMediaType: true}
	case KindEncryptionKey:
		return Descriptor{ParseMode: ParseBasicMetadata, Class: ClassOther, SingleStreamPerMediaType: true}
	case KindSegment:
		return Descriptor{ParseMode: ParseAllFrames, Class: ClassSegment, SingleStreamPerMediaType: true, ExpectSegmentIndex: true}
	default:
		panic(fmt.Sprintf("hls: no descriptor for %v", k))
	}
}
