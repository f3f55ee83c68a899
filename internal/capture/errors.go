package capture

import "errors"

var (
	ErrNoFrame          = errors.New("capture: no video frame available")
	ErrSessionClosed    = errors.New("capture: session closed")
	ErrAlreadyCapturing = errors.New("capture: capture already in progress")
)

// DeviceError means the camera could not be acquired. It ends the session.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return "capture: camera unavailable: " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ModelLoadError means pose guidance is unavailable. The session keeps
// running and manual capture still works.
type ModelLoadError struct {
	Err error
}

func (e *ModelLoadError) Error() string {
	return "capture: pose model failed to load: " + e.Err.Error()
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError is a failed sampling tick. It never leaves the session.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "capture: pose inference failed: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error { return e.Err }

// EncodeError means the still image could not be produced. The session stays
// open so the user can retry.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return "capture: frame encoding failed: " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error { return e.Err }
