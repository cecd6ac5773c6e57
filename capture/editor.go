package capture

import (
	"context"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/invscan/autocount/components/camera"
	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/rimage"
	"github.com/invscan/autocount/roi"
	"github.com/invscan/autocount/utils"
)

// Counter counts the items in an image sent as a data URL.
type Counter interface {
	Count(ctx context.Context, imageDataURL, notes string) (*Result, error)
}

// Keys accepted by HandleKey as a capture trigger.
const (
	KeyEnter = "Enter"
	KeySpace = " "
)

// Option configures an Editor.
type Option func(*Editor)

// WithMaxUploadEdge downscales crops so neither side exceeds edge pixels before upload. Zero
// disables downscaling.
func WithMaxUploadEdge(edge int) Option {
	return func(e *Editor) {
		e.maxUploadEdge = edge
	}
}

// State is a point-in-time view of the editor for rendering.
type State struct {
	Ready     bool
	DeviceID  string
	Devices   []camera.Device
	Frame     *Frame
	Rect      roi.Rect
	Result    *Result
	Error     string
	Advisory  string
	Counting  bool
	Switching bool
	Dragging  bool
}

// Editor is the capture workflow over a camera session. All methods are safe for concurrent use;
// guard flags turn overlapping captures, switches and counts into no-ops.
type Editor struct {
	session *camera.Session
	counter Counter
	logger  logging.Logger
	hub     *PointerHub

	maxUploadEdge int

	mu         sync.Mutex
	frame      *Frame
	rect       roi.Rect
	result     *Result
	errMsg     string
	notes      string
	counting   bool
	switching  bool
	dragging   bool
	drag       roi.Drag
	scope      *DragScope
	generation uint64
}

// NewEditor returns an editor over session that submits crops to counter.
func NewEditor(session *camera.Session, counter Counter, logger logging.Logger, opts ...Option) *Editor {
	e := &Editor{
		session: session,
		counter: counter,
		logger:  logger,
		hub:     NewPointerHub(),
		rect:    roi.DefaultRect,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start acquires the default camera, discarding any frozen frame and count state.
func (e *Editor) Start(ctx context.Context) error {
	return e.reacquire(ctx, func(ctx context.Context) error {
		return e.session.Acquire(ctx, "")
	})
}

// Retry re-acquires the last known device after a failure, discarding any frozen frame and count
// state.
func (e *Editor) Retry(ctx context.Context) error {
	return e.reacquire(ctx, e.session.Retry)
}

// SwitchDevice tears down the stream, opens deviceID and resets capture and count state. It is a
// no-op while another switch is in flight.
func (e *Editor) SwitchDevice(ctx context.Context, deviceID string) error {
	return e.reacquire(ctx, func(ctx context.Context) error {
		return e.session.Acquire(ctx, deviceID)
	})
}

// Retake discards the frozen frame and count state and re-acquires the selected device.
func (e *Editor) Retake(ctx context.Context) error {
	return e.reacquire(ctx, e.session.Retry)
}

// reacquire resets capture state and replaces the stream using acquire. Any count in flight
// becomes stale and any open drag is ended. It is a no-op while another acquisition is in flight.
func (e *Editor) reacquire(ctx context.Context, acquire func(context.Context) error) error {
	e.mu.Lock()
	if e.switching {
		e.mu.Unlock()
		return nil
	}
	e.switching = true
	stale := e.resetLocked()
	e.mu.Unlock()

	if stale != nil {
		stale.End()
	}
	err := acquire(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.switching = false
	e.errMsg = camera.UserMessage(err)
	return err
}

// resetLocked drops the frozen frame and everything derived from it. Any count in flight becomes
// stale. An open drag is detached and returned so the caller can end it once unlocked.
func (e *Editor) resetLocked() *DragScope {
	e.frame = nil
	e.result = nil
	e.errMsg = ""
	e.rect = roi.DefaultRect
	e.generation++

	stale := e.scope
	e.scope = nil
	e.dragging = false
	return stale
}

// Capture freezes the live stream. It reports false without error when capture is not currently
// allowed, and ErrNotReady when the stream has no dimensions yet.
func (e *Editor) Capture(ctx context.Context) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "capture::Capture")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frame != nil || e.counting || e.switching || !e.session.Ready() {
		return false, nil
	}
	stream := e.session.Stream()
	if stream == nil {
		return false, nil
	}
	width, height := stream.Dimensions()
	if width == 0 || height == 0 {
		e.errMsg = "The camera is not ready yet. Wait a moment and try again."
		return false, ErrNotReady
	}

	img, err := stream.Snapshot(ctx)
	if err != nil {
		e.errMsg = "Could not capture a photo: " + err.Error()
		return false, errors.Wrap(err, "snapshot failed")
	}
	data, err := rimage.EncodeImage(ctx, img, utils.MimeTypeJPEG)
	if err != nil {
		e.errMsg = "Could not capture a photo: " + err.Error()
		return false, err
	}
	stream.Pause()

	e.resetLocked()
	e.frame = &Frame{
		ID:       uuid.NewString(),
		Data:     data,
		MimeType: utils.MimeTypeJPEG,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}
	e.logger.CDebugw(ctx, "frame captured", "frame_id", e.frame.ID, "width", e.frame.Width, "height", e.frame.Height)
	return true, nil
}

// Tap is a tap on the live preview.
func (e *Editor) Tap(ctx context.Context) (bool, error) {
	return e.Capture(ctx)
}

// HandleKey captures on Enter or Space and ignores every other key.
func (e *Editor) HandleKey(ctx context.Context, key string) (bool, error) {
	switch key {
	case KeyEnter, KeySpace, "Space":
		return e.Capture(ctx)
	default:
		return false, nil
	}
}

// SetNotes sets the notes sent with the next count.
func (e *Editor) SetNotes(notes string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notes = notes
}

// SetRect replaces the region of interest, sanitizing it. It only applies to a frozen frame.
func (e *Editor) SetRect(r roi.Rect) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frame == nil || e.dragging {
		return false
	}
	e.rect = r.Sanitize()
	return true
}

// BeginDrag starts a move or resize gesture at start over a container with the given on-screen
// bounds. Pointer events sent through DispatchPointer update the rectangle until a PointerUp or
// PointerCancel, or until the returned scope is ended.
func (e *Editor) BeginDrag(handle roi.Handle, start roi.Point, container roi.Bounds) (*DragScope, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frame == nil {
		return nil, errors.New("no frozen frame to edit")
	}
	if e.dragging {
		return nil, errors.New("a drag is already in progress")
	}
	e.dragging = true
	e.drag = roi.NewDrag(handle, start, e.rect, container)

	scope := &DragScope{done: make(chan struct{})}
	scope.finish = func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.scope == scope {
			e.scope = nil
			e.dragging = false
		}
	}
	scope.unsubscribe = e.hub.Subscribe(func(ev PointerEvent) {
		switch ev.Kind {
		case PointerMove:
			e.updateDrag(scope, ev.Point)
		case PointerUp:
			e.updateDrag(scope, ev.Point)
			scope.End()
		case PointerCancel:
			scope.End()
		}
	})
	e.scope = scope
	return scope, nil
}

// WithDrag runs fn inside a drag scope that is always released when fn returns or panics.
func (e *Editor) WithDrag(handle roi.Handle, start roi.Point, container roi.Bounds, fn func(*DragScope) error) error {
	scope, err := e.BeginDrag(handle, start, container)
	if err != nil {
		return err
	}
	defer scope.End()
	return fn(scope)
}

func (e *Editor) updateDrag(scope *DragScope, p roi.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scope != scope || e.frame == nil {
		return
	}
	e.rect = e.drag.Apply(p)
}

// DispatchPointer delivers an editor-wide pointer event to the active drag, if any.
func (e *Editor) DispatchPointer(ev PointerEvent) {
	e.hub.Dispatch(ev)
}

// Done crops the frozen frame to the region of interest and submits it for counting. Only one
// count runs at a time; a result that arrives after the frame was replaced is dropped.
func (e *Editor) Done(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "capture::Done")
	defer span.End()

	e.mu.Lock()
	if e.frame == nil || e.counting {
		e.mu.Unlock()
		return nil
	}
	e.counting = true
	e.errMsg = ""
	frame, rect, notes, generation := e.frame, e.rect, e.notes, e.generation
	e.mu.Unlock()

	result, err := e.count(ctx, frame, rect, notes)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.counting = false
	if generation != e.generation {
		e.logger.CDebugw(ctx, "dropping count for replaced frame", "frame_id", frame.ID)
		return nil
	}
	if err != nil {
		e.result = nil
		e.errMsg = "Counting failed: " + err.Error()
		e.logger.Warnw("count failed", "frame_id", frame.ID, "error", err)
		return err
	}
	e.result = result.clamped()
	e.logger.CInfow(ctx, "count complete", "frame_id", frame.ID, "count", result.Count, "annotations", len(result.Annotations))
	return nil
}

func (e *Editor) count(ctx context.Context, frame *Frame, rect roi.Rect, notes string) (*Result, error) {
	img, err := rimage.DecodeImage(ctx, frame.Data, frame.MimeType)
	if err != nil {
		return nil, err
	}
	cropRect := rect.PixelRect(img.Bounds().Dx(), img.Bounds().Dy())
	cropped, err := rimage.Crop(ctx, img, cropRect)
	if err != nil {
		return nil, err
	}
	upload := rimage.Fit(cropped, e.maxUploadEdge)
	dataURL, err := rimage.EncodeDataURL(ctx, upload, utils.MimeTypeJPEG)
	if err != nil {
		return nil, err
	}
	e.logger.CDebugw(ctx, "submitting crop", "frame_id", frame.ID, "crop", cropRect, "upload_size", upload.Bounds().Size())
	result, err := e.counter.Count(ctx, dataURL, notes)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("malformed response: no result")
	}
	return result, nil
}

// Render draws the region of interest and the counted items over the frozen frame.
func (e *Editor) Render(ctx context.Context) (image.Image, error) {
	e.mu.Lock()
	frame, rect, result := e.frame, e.rect, e.result
	e.mu.Unlock()
	if frame == nil {
		return nil, errors.New("no frozen frame to render")
	}
	img, err := rimage.DecodeImage(ctx, frame.Data, frame.MimeType)
	if err != nil {
		return nil, err
	}
	return rimage.DrawMarkers(img, rect.PixelRect(img.Bounds().Dx(), img.Bounds().Dy()), markers(rect, result, img.Bounds())), nil
}

// markers places annotations, which are relative to the crop, onto the full frame.
func markers(rect roi.Rect, result *Result, bounds image.Rectangle) []rimage.Marker {
	if result == nil {
		return nil
	}
	out := make([]rimage.Marker, 0, len(result.Annotations))
	for _, a := range result.Annotations {
		fx, fy := rect.ToFrame(a.X, a.Y)
		out = append(out, rimage.Marker{
			Center: image.Pt(
				bounds.Min.X+utils.RoundInt(fx*float64(bounds.Dx())),
				bounds.Min.Y+utils.RoundInt(fy*float64(bounds.Dy())),
			),
			Label: a.Label,
		})
	}
	return out
}

// State returns a snapshot of the editor.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Ready:     e.session.Ready(),
		DeviceID:  e.session.DeviceID(),
		Devices:   e.session.Devices(),
		Frame:     e.frame,
		Rect:      e.rect,
		Result:    e.result,
		Error:     e.errMsg,
		Advisory:  e.result.Advisory(),
		Counting:  e.counting,
		Switching: e.switching,
		Dragging:  e.dragging,
	}
}

// Close stops the camera.
func (e *Editor) Close() error {
	return e.session.Close()
}
