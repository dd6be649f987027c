package cinema

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied ends the current attempt; a fresh StartMovie is required.
	ErrPermissionDenied = errors.New("storage permission denied")

	// ErrSurfaceCreationFailed means the engine was not ready or out of surfaces.
	ErrSurfaceCreationFailed = errors.New("video surface creation failed")

	// ErrDecoderPrepareFailed covers bad paths, unsupported formats and I/O failures.
	ErrDecoderPrepareFailed = errors.New("decoder prepare failed")

	// ErrDecoderRuntime is an asynchronous decoder failure after playback started.
	ErrDecoderRuntime = errors.New("decoder runtime error")

	// ErrSurfaceReleased is returned when presenting into a released surface.
	ErrSurfaceReleased = errors.New("surface released")

	// ErrEngineStopped is returned by broker operations after engine teardown.
	ErrEngineStopped = errors.New("engine stopped")
)

// ErrorCode is the diagnostic code a decoder attaches to a failure. Values
// follow the platform media player's what/extra codes.
type ErrorCode int

const (
	CodeNone        ErrorCode = 0
	CodeUnknown     ErrorCode = 1
	CodeServerDied  ErrorCode = 100
	CodeIO          ErrorCode = -1004
	CodeMalformed   ErrorCode = -1007
	CodeUnsupported ErrorCode = -1010
	CodeTimedOut    ErrorCode = -110
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "none"
	case CodeUnknown:
		return "unknown"
	case CodeServerDied:
		return "server_died"
	case CodeIO:
		return "io"
	case CodeMalformed:
		return "malformed"
	case CodeUnsupported:
		return "unsupported"
	case CodeTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// PlaybackError is the failure recorded on a session. Kind is one of the
// sentinel errors above.
type PlaybackError struct {
	Kind error
	Code ErrorCode
	Path string
}

func (e *PlaybackError) Error() string {
	if e.Code == CodeNone {
		return fmt.Sprintf("%s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Path, e.Kind, e.Code)
}

func (e *PlaybackError) Unwrap() error {
	return e.Kind
}

// DecoderError lets a decoder report a prepare failure with a code attached.
type DecoderError struct {
	Code ErrorCode
	Err  error
}

func (e *DecoderError) Error() string {
	return fmt.Sprintf("decoder error %s: %v", e.Code, e.Err)
}

func (e *DecoderError) Unwrap() error {
	return e.Err
}

// codeOf extracts the decoder code from err, defaulting to CodeUnknown.
func codeOf(err error) ErrorCode {
	var decoderErr *DecoderError
	if errors.As(err, &decoderErr) {
		return decoderErr.Code
	}
	return CodeUnknown
}
