package hls

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies a failure for logging and status mapping.
type Category int

const (
	CategoryClassification Category = iota + 1
	CategoryValidation
	CategoryBuilder
	CategoryAllocation
	CategoryUnexpected
)

func (c Category) String() string {
	switch c {
	case CategoryClassification:
		return "classification"
	case CategoryValidation:
		return "validation"
	case CategoryBuilder:
		return "builder"
	case CategoryAllocation:
		return "allocation"
	case CategoryUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Status is the result code reported by the playlist builder and the muxer.
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusNotFound
	StatusBadData
	StatusAllocFailed
	StatusUnexpected
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadRequest:
		return "bad request"
	case StatusNotFound:
		return "not found"
	case StatusBadData:
		return "bad data"
	case StatusAllocFailed:
		return "alloc failed"
	case StatusUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// HTTPStatus maps a collaborator status to an HTTP status code.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusBadData, StatusAllocFailed, StatusUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

var (
	// ErrUnidentifiedRequest is returned when a file name matches no known artifact.
	ErrUnidentifiedRequest = errors.New("unidentified request")

	// ErrUnidentifiedManifestRequest is returned when a playlist file name
	// matches none of the playlist prefixes.
	ErrUnidentifiedManifestRequest = errors.New("unidentified m3u8 request")

	// ErrMissingSegmentIndex is returned when a segment request has no ordinal.
	ErrMissingSegmentIndex = errors.New("missing segment index")

	// ErrInvalidSelector is returned when the track selector cannot be parsed.
	ErrInvalidSelector = errors.New("invalid track selector")

	// ErrEncryptionNotSupported is returned for I-frame playlists on encrypted streams.
	ErrEncryptionNotSupported = errors.New("iframes playlist not supported with encryption")

	// ErrAudioSpeedChangeNotSupported is returned for I-frame playlists when
	// an audio track plays at a changed speed.
	ErrAudioSpeedChangeNotSupported = errors.New("iframes playlist not supported with audio speed change")

	// ErrDRMNotImplemented is returned by ParseDRMInfo.
	ErrDRMNotImplemented = errors.New("drm support for hls not implemented")

	// ErrInvalidState is returned when a segment pipeline operation is
	// called out of order.
	ErrInvalidState = errors.New("invalid pipeline state")

	// ErrSinkClosed is returned by a Sink that can no longer accept data.
	ErrSinkClosed = errors.New("sink closed")
)

// Error is a categorized failure surfaced to the host. Cause holds the
// sentinel or collaborator error and is reachable through errors.Is/As.
type Error struct {
	Category Category
	Status   Status
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code the host should respond with.
func (e *Error) HTTPStatus() int {
	switch e.Category {
	case CategoryClassification, CategoryValidation:
		return http.StatusBadRequest
	case CategoryBuilder:
		return e.Status.HTTPStatus()
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the failure is attributable to the request.
func (e *Error) IsClientError() bool {
	s := e.HTTPStatus()
	return s >= 400 && s < 500
}

// NewStatusError returns a collaborator failure carrying status s. Builders
// and muxers use it so the core can propagate their status code.
func NewStatusError(s Status, format string, args ...any) error {
	return &Error{Category: CategoryBuilder, Status: s, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus returns the HTTP status for err. Errors that are not *Error map
// to 500.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// CategoryOf returns the category of err, or CategoryUnexpected.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnexpected
}

func classificationError(msg string, cause error) *Error {
	return &Error{Category: CategoryClassification, Status: StatusBadRequest, Message: msg, Cause: cause}
}

func validationError(msg string, cause error) *Error {
	return &Error{Category: CategoryValidation, Status: StatusBadRequest, Message: msg, Cause: cause}
}

// builderError wraps a collaborator failure, keeping its status when it has one.
func builderError(msg string, cause error) *Error {
	status := StatusUnexpected
	var e *Error
	if errors.As(cause, &e) && e.Status != StatusOK {
		status = e.Status
	}
	return &Error{Category: CategoryBuilder, Status: status, Message: msg, Cause: cause}
}
