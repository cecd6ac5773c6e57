package camera

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"

	"github.com/invscan/autocount/logging"
)

// Session owns at most one active stream and remembers the selected device.
type Session struct {
	source Source
	logger logging.Logger

	mu       sync.Mutex
	stream   Stream
	deviceID string
	devices  []Device
	ready    bool
	lastErr  error

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewSession returns an idle session reading from source.
func NewSession(source Source, logger logging.Logger) *Session {
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Session{
		source:    source,
		logger:    logger,
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
}

// Acquire stops any current stream and opens deviceID, or the rear camera when deviceID is
// empty. On success the device id reported by the live stream is recorded and the device list is
// refreshed in the background.
func (s *Session) Acquire(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(); err != nil {
		s.logger.Warnw("error stopping previous stream", "error", err)
	}

	stream, err := s.source.GetUserMedia(ctx, NewConstraints(deviceID))
	if err != nil {
		s.lastErr = err
		if deviceID != "" {
			s.deviceID = deviceID
		}
		s.logger.Warnw("could not acquire camera", "device_id", deviceID, "error", err)
		return err
	}

	s.stream = stream
	s.ready = true
	s.lastErr = nil
	s.deviceID = deviceID
	if id := stream.DeviceID(); id != "" {
		s.deviceID = id
	}
	s.logger.CDebugw(ctx, "camera acquired", "requested", deviceID, "device_id", s.deviceID)
	s.refreshDevices()
	return nil
}

// Retry re-runs acquisition with the last known device id.
func (s *Session) Retry(ctx context.Context) error {
	return s.Acquire(ctx, s.DeviceID())
}

// refreshDevices enumerates devices without blocking the caller. Failures are only logged.
func (s *Session) refreshDevices() {
	if s.cancelCtx.Err() != nil {
		return
	}
	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		devices, err := s.source.EnumerateDevices(s.cancelCtx)
		if err != nil {
			s.logger.Warnw("could not enumerate cameras", "error", err)
			return
		}
		s.mu.Lock()
		s.devices = devices
		s.mu.Unlock()
	}, s.activeBackgroundWorkers.Done)
}

// Release stops the active stream, if any, and marks the session not ready.
func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	s.ready = false
	if s.stream == nil {
		return nil
	}
	err := s.stream.Stop()
	s.stream = nil
	return err
}

// Close releases the stream and waits for background work to finish.
func (s *Session) Close() error {
	s.cancel()
	err := s.Release()
	s.activeBackgroundWorkers.Wait()
	return err
}

// Stream returns the active stream, or nil.
func (s *Session) Stream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Ready reports whether a stream is active.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// DeviceID returns the selected device id.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Devices returns the last enumerated device list.
func (s *Session) Devices() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Device(nil), s.devices...)
}

// Err returns the last acquisition error, or nil after a successful acquisition.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
