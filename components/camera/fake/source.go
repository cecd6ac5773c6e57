// Package fake implements camera sources backed by in-memory or on-disk images.
package fake

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/invscan/autocount/components/camera"
	"github.com/invscan/autocount/rimage"
)

// Camera is a fake device that always shows Image. A nil Image never produces frames.
type Camera struct {
	Device camera.Device
	Image  image.Image
}

// Source is a camera.Source over a fixed set of fake cameras. It records every stream it opens.
type Source struct {
	mu           sync.Mutex
	cameras      []Camera
	acquireErr   error
	enumerateErr error
	streams      []*Stream
}

// NewSource returns a source over cams. Without a device id the first camera is opened.
func NewSource(cams ...Camera) *Source {
	return &Source{cameras: cams}
}

// NewFileSource returns a source with one camera per image file.
func NewFileSource(ctx context.Context, paths ...string) (*Source, error) {
	cams := make([]Camera, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		img, err := rimage.DecodeImage(ctx, data, rimage.DetectMIMEType(data))
		if err != nil {
			return nil, errors.Wrapf(err, "could not load %q", path)
		}
		cams = append(cams, Camera{
			Device: camera.Device{ID: filepath.Base(path), Label: path},
			Image:  img,
		})
	}
	return NewSource(cams...), nil
}

// SetAcquireError makes every GetUserMedia call fail with err until cleared with nil.
func (s *Source) SetAcquireError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquireErr = err
}

// SetEnumerateError makes EnumerateDevices fail with err until cleared with nil.
func (s *Source) SetEnumerateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enumerateErr = err
}

// GetUserMedia opens the camera with the requested id, or the first camera.
func (s *Source) GetUserMedia(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	if len(s.cameras) == 0 {
		return nil, camera.ErrNoDevice
	}
	cam := s.cameras[0]
	if c.DeviceID != "" {
		found := false
		for _, candidate := range s.cameras {
			if candidate.Device.ID == c.DeviceID {
				cam, found = candidate, true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(camera.ErrNoDevice, "no device %q", c.DeviceID)
		}
	}
	stream := &Stream{device: cam.Device, img: cam.Image}
	s.streams = append(s.streams, stream)
	return stream, nil
}

// EnumerateDevices lists the fake cameras.
func (s *Source) EnumerateDevices(ctx context.Context) ([]camera.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enumerateErr != nil {
		return nil, s.enumerateErr
	}
	devices := make([]camera.Device, 0, len(s.cameras))
	for _, cam := range s.cameras {
		devices = append(devices, cam.Device)
	}
	return devices, nil
}

// Streams returns every stream opened so far.
func (s *Source) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Stream(nil), s.streams...)
}

// ActiveStreams counts opened streams that have not been stopped.
func (s *Source) ActiveStreams() int {
	active := 0
	for _, stream := range s.Streams() {
		if !stream.Stopped() {
			active++
		}
	}
	return active
}

// Stream is a fake camera.Stream.
type Stream struct {
	device camera.Device
	img    image.Image

	mu      sync.Mutex
	paused  bool
	stopped bool
}

// DeviceID returns the id of the backing fake camera.
func (s *Stream) DeviceID() string {
	return s.device.ID
}

// Dimensions returns the image size, or zeros when the camera has no image.
func (s *Stream) Dimensions() (int, int) {
	if s.img == nil {
		return 0, 0
	}
	return s.img.Bounds().Dx(), s.img.Bounds().Dy()
}

// Snapshot returns the camera image.
func (s *Stream) Snapshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Stopped() {
		return nil, camera.ErrStreamStopped
	}
	if s.img == nil {
		return nil, errors.New("no frame available")
	}
	return s.img, nil
}

// Pause marks the stream paused.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume marks the stream live.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Paused reports whether the stream is paused.
func (s *Stream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stop stops the stream.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
