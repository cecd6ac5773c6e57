package camera

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pion/mediadevices"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"github.com/invscan/autocount/logging"
)

// labels that hint a device faces away from the user.
var rearLabelHints = []string{"back", "rear", "environment", "world"}

// labels that hint a device faces the user.
var frontLabelHints = []string{"front", "user", "facetime", "integrated"}

// MediaSource opens cameras through the platform media drivers.
type MediaSource struct {
	logger logging.Logger
}

// NewMediaSource registers the platform camera drivers and returns a Source over them.
func NewMediaSource(logger logging.Logger) *MediaSource {
	mediadevicescamera.Initialize()
	return &MediaSource{logger: logger}
}

// EnumerateDevices lists the video inputs known to the media drivers.
func (m *MediaSource) EnumerateDevices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var devices []Device
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind != mediadevices.VideoInput {
			continue
		}
		label, _, _ := strings.Cut(info.Label, mediadevicescamera.LabelSeparator)
		devices = append(devices, Device{ID: info.DeviceID, Label: label})
	}
	return devices, nil
}

// pickFacing returns the id of the device whose label best matches mode, or "" when no label
// gives a hint.
func pickFacing(devices []Device, mode FacingMode) string {
	hints := rearLabelHints
	if mode == FacingUser {
		hints = frontLabelHints
	}
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		for _, hint := range hints {
			if strings.Contains(label, hint) {
				return d.ID
			}
		}
	}
	return ""
}

func (m *MediaSource) makeConstraints(c Constraints) mediadevices.MediaStreamConstraints {
	return mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {
			if c.DeviceID != "" {
				constraint.DeviceID = prop.StringExact(c.DeviceID)
			}
			constraint.Width = prop.IntRanged{Min: 0, Ideal: c.IdealWidth, Max: 4096}
			constraint.Height = prop.IntRanged{Min: 0, Ideal: c.IdealHeight, Max: 2160}
			constraint.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatI420,
				frame.FormatYUY2,
				frame.FormatUYVY,
				frame.FormatRGBA,
				frame.FormatMJPEG,
				frame.FormatNV12,
				frame.FormatNV21,
			}
			m.logger.Debugf("constraints: %v", constraint)
		},
	}
}

// GetUserMedia opens the requested device. Without a device id the facing preference is
// resolved from device labels, falling back to whichever camera the drivers pick.
func (m *MediaSource) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	ctx, span := trace.StartSpan(ctx, "camera::GetUserMedia")
	defer span.End()

	if c.DeviceID == "" && c.FacingMode != "" {
		devices, err := m.EnumerateDevices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, ErrNoDevice
		}
		c.DeviceID = pickFacing(devices, c.FacingMode)
	}

	ms, err := mediadevices.GetUserMedia(m.makeConstraints(c))
	if err != nil {
		return nil, errors.Wrap(err, "could not open camera")
	}
	tracks := ms.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoDevice
	}
	videoTrack, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		err := ErrNoDevice
		for _, t := range ms.GetTracks() {
			err = multierr.Combine(err, t.Close())
		}
		return nil, err
	}

	s := &mediaStream{
		deviceID: videoTrack.ID(),
		tracks:   ms.GetTracks(),
		reader:   videoTrack.NewReader(false),
	}
	// the first frame tells us the native resolution
	if _, err := s.read(); err != nil {
		m.logger.Warnw("camera opened but first frame failed", "device_id", s.deviceID, "error", err)
	}
	return s, nil
}

type mediaStream struct {
	deviceID string
	tracks   []mediadevices.Track
	reader   video.Reader

	mu      sync.Mutex
	width   int
	height  int
	last    image.Image
	paused  bool
	stopped bool
}

func (s *mediaStream) DeviceID() string {
	return s.deviceID
}

func (s *mediaStream) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// read pulls the next frame and keeps a copy, since the driver reuses its buffers.
func (s *mediaStream) read() (image.Image, error) {
	img, release, err := s.reader.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, err
	}
	cloned := imaging.Clone(img)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = cloned
	s.width, s.height = cloned.Bounds().Dx(), cloned.Bounds().Dy()
	return cloned, nil
}

func (s *mediaStream) Snapshot(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	stopped, paused, last := s.stopped, s.paused, s.last
	s.mu.Unlock()
	if stopped {
		return nil, ErrStreamStopped
	}
	if paused && last != nil {
		return last, nil
	}
	return s.read()
}

func (s *mediaStream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *mediaStream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *mediaStream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *mediaStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	var err error
	for _, t := range s.tracks {
		err = multierr.Combine(err, t.Close())
	}
	return err
}
