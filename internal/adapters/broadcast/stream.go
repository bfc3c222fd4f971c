package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/workpulse/internal/domain/types"
)

const defaultStreamBuffer = 16

// StreamObserver is a remote observer attached through a long-lived stream.
// Notifications are buffered; a full buffer is a delivery failure.
type StreamObserver struct {
	id  string
	url string
	ch  chan types.Notification

	mu       sync.Mutex
	tracking bool
	clicks   int
	closed   bool
}

// NewStreamObserver creates an observer with a fresh id. url is informational.
func NewStreamObserver(url string, buffer int) *StreamObserver {
	if buffer < 1 {
		buffer = defaultStreamBuffer
	}
	return &StreamObserver{
		id:  uuid.NewString(),
		url: url,
		ch:  make(chan types.Notification, buffer),
	}
}

// ID returns the observer id.
func (s *StreamObserver) ID() string { return s.id }

// Events is the channel the stream writer drains.
func (s *StreamObserver) Events() <-chan types.Notification { return s.ch }

// Deliver queues n for the stream and mirrors the tracking flag.
func (s *StreamObserver) Deliver(_ context.Context, n types.Notification) (types.ObserverAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ObserverAck{}, ErrObserverClosed
	}
	select {
	case s.ch <- n:
	default:
		return types.ObserverAck{Success: false, Tracking: s.tracking}, ErrBufferFull
	}
	switch n.Action {
	case types.ActionStartTracking:
		s.tracking = true
	case types.ActionStopTracking:
		s.tracking = false
	}
	return types.ObserverAck{Success: true, Tracking: s.tracking}, nil
}

// Ping answers from the mirrored state.
func (s *StreamObserver) Ping(_ context.Context) (types.PingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.PingResponse{}, ErrObserverClosed
	}
	return types.PingResponse{Status: "alive", Tracking: s.tracking, URL: s.url, ClickCount: s.clicks}, nil
}

// Credit counts one accepted click sent by this observer.
func (s *StreamObserver) Credit() {
	s.mu.Lock()
	s.clicks++
	s.mu.Unlock()
}

// Close ends the stream. Later deliveries fail.
func (s *StreamObserver) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// creditor is implemented by observers that count their accepted clicks.
type creditor interface {
	Credit()
}

// Credit attributes an accepted click to the observer with id, if it keeps
// a count.
func (h *Hub) Credit(id string) {
	if id == "" {
		return
	}
	if o, ok := h.Get(id); ok {
		if c, ok := o.(creditor); ok {
			c.Credit()
		}
	}
}
