// Package camera acquires live video from a capture device and owns the single active stream of
// a capture session.
package camera

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// FacingMode is the direction a camera faces relative to the screen.
type FacingMode string

// Facing modes.
const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

// Ideal capture resolution requested from devices.
const (
	IdealWidth  = 1280
	IdealHeight = 720
)

var (
	// ErrPermissionDenied is returned when the platform refuses camera access.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrNoDevice is returned when no matching capture device exists.
	ErrNoDevice = errors.New("no camera found")
	// ErrStreamStopped is returned by operations on a stopped stream.
	ErrStreamStopped = errors.New("camera stream has been stopped")
)

// Constraints select and shape the video a Source opens. A DeviceID takes precedence over the
// facing preference.
type Constraints struct {
	DeviceID    string
	FacingMode  FacingMode
	IdealWidth  int
	IdealHeight int
}

// NewConstraints returns the constraints for opening deviceID, or the rear-facing camera when
// deviceID is empty.
func NewConstraints(deviceID string) Constraints {
	c := Constraints{IdealWidth: IdealWidth, IdealHeight: IdealHeight}
	if deviceID != "" {
		c.DeviceID = deviceID
	} else {
		c.FacingMode = FacingEnvironment
	}
	return c
}

// Device describes a video input.
type Device struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Stream is a live video stream from one device.
type Stream interface {
	// DeviceID is the id of the device actually backing the stream.
	DeviceID() string
	// Dimensions returns the native frame size, or zeros before the first frame arrives.
	Dimensions() (int, int)
	// Snapshot returns a copy of the current frame at native resolution.
	Snapshot(ctx context.Context) (image.Image, error)
	Pause()
	Resume()
	Paused() bool
	// Stop ends every track of the stream. It is safe to call more than once.
	Stop() error
}

// Source opens streams and lists devices.
type Source interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
	EnumerateDevices(ctx context.Context) ([]Device, error)
}

// UserMessage turns an acquisition error into text suitable for showing to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access was denied. Allow camera access and try again."
	case errors.Is(err, ErrNoDevice):
		return "No camera was found on this device."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Starting the camera was interrupted. Try again."
	default:
		return "Could not start the camera: " + err.Error()
	}
}
