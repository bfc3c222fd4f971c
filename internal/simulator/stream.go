package simulator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/workpulse/internal/domain/types"
)

// Receiver is what a stream hands notifications to.
type Receiver interface {
	Deliver(ctx context.Context, n types.Notification) (types.ObserverAck, error)
}

// Stream is one observer registration held open as Server-Sent Events.
type Stream struct {
	id      string
	resp    *http.Response
	scanner *bufio.Scanner
}

type sseEvent struct {
	name string
	data string
}

// OpenStream registers an observer and waits for the hello event carrying
// its id.
func OpenStream(ctx context.Context, baseURL, observerURL string) (*Stream, error) {
	endpoint := baseURL + "/v1/observers/stream?url=" + url.QueryEscape(observerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream must outlive any client timeout; ctx bounds it instead.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: stream: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	s := &Stream{resp: resp, scanner: bufio.NewScanner(resp.Body)}
	ev, ok := s.next()
	if !ok || ev.name != eventHello {
		_ = resp.Body.Close()
		return nil, ErrNoHello
	}
	var hello struct {
		ObserverID string `json:"observerId"`
	}
	if err := json.Unmarshal([]byte(ev.data), &hello); err != nil || hello.ObserverID == "" {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: bad hello %q", ErrNoHello, ev.data)
	}
	s.id = hello.ObserverID
	return s, nil
}

// ID returns the observer id the coordinator assigned.
func (s *Stream) ID() string { return s.id }

// Pump hands every notification to r until the stream ends.
func (s *Stream) Pump(ctx context.Context, r Receiver) {
	for {
		ev, ok := s.next()
		if !ok {
			return
		}
		var n types.Notification
		if err := json.Unmarshal([]byte(ev.data), &n); err != nil {
			continue
		}
		_, _ = r.Deliver(ctx, n)
	}
}

// Close ends the registration.
func (s *Stream) Close() error {
	return s.resp.Body.Close()
}

// next reads one event. Comment lines are skipped.
func (s *Stream) next() (sseEvent, bool) {
	var ev sseEvent
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if ev.name != "" || ev.data != "" {
				return ev, true
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	return ev, false
}
