package capture

import (
	"sync"

	"github.com/invscan/autocount/roi"
)

// PointerKind is the type of a pointer event.
type PointerKind int

// Pointer event kinds.
const (
	PointerMove PointerKind = iota
	PointerUp
	PointerCancel
)

// PointerEvent is a pointer event at a screen position.
type PointerEvent struct {
	Kind  PointerKind
	Point roi.Point
}

// PointerHub fans editor-wide pointer events out to subscribers, so a drag keeps tracking the
// pointer after it leaves the handle it started on.
type PointerHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(PointerEvent)
}

// NewPointerHub returns an empty hub.
func NewPointerHub() *PointerHub {
	return &PointerHub{subs: map[int]func(PointerEvent){}}
}

// Subscribe registers fn and returns the function that removes it.
func (h *PointerHub) Subscribe(fn func(PointerEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// Dispatch delivers ev to every current subscriber. Subscribers may unsubscribe from within.
func (h *PointerHub) Dispatch(ev PointerEvent) {
	h.mu.Lock()
	subs := make([]func(PointerEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Len returns the number of subscribers.
func (h *PointerHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// DragScope is an active drag. End releases its pointer subscription and clears the editor's
// dragging flag; it runs at most once.
type DragScope struct {
	once        sync.Once
	unsubscribe func()
	finish      func()
	done        chan struct{}
}

// End finishes the drag.
func (s *DragScope) End() {
	s.once.Do(func() {
		s.unsubscribe()
		s.finish()
		close(s.done)
	})
}

// Done is closed once the drag has ended.
func (s *DragScope) Done() <-chan struct{} {
	return s.done
}
