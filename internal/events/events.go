// Package events provides a lossy publish/subscribe bus for side observers
// (desktop notifications, logging). Worker results never travel over it.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ncopds/ncopds/internal/constants"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventDownloadQueued    EventType = "download_queued"
	EventDownloadCompleted EventType = "download_completed"
	EventDownloadFailed    EventType = "download_failed"
	EventDownloadCancelled EventType = "download_cancelled"

	EventLocationChanged EventType = "location_changed"
	EventNavigationError EventType = "navigation_error"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// DownloadEvent reports a download task lifecycle change.
type DownloadEvent struct {
	BaseEvent
	Seq    uint64
	URL    string
	Path   string // destination, final once completed
	Title  string
	Bytes  int64
	Reason string // set for failed/cancelled
}

// NavigationEvent reports a settled navigation: a new location or an error.
type NavigationEvent struct {
	BaseEvent
	Location string
	Message  string
}

// EventBus fans events out to subscribers. Publish never blocks; events are
// dropped when a subscriber's buffer is full.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates an event bus with the given per-subscriber buffer size.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel receiving events of one type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel receiving every event.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish delivers event to matching subscribers without blocking.
// A nil bus is a no-op so publishers can treat the bus as optional.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// PublishDownload is a convenience wrapper for DownloadEvent.
func (eb *EventBus) PublishDownload(eventType EventType, seq uint64, url, path, title string, bytes int64, reason string) {
	eb.Publish(&DownloadEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		Seq:       seq,
		URL:       url,
		Path:      path,
		Title:     title,
		Bytes:     bytes,
		Reason:    reason,
	})
}

// PublishNavigation is a convenience wrapper for NavigationEvent.
func (eb *EventBus) PublishNavigation(eventType EventType, location, message string) {
	eb.Publish(&NavigationEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		Location:  location,
		Message:   message,
	})
}

// DroppedEvents returns how many events were dropped due to full buffers.
func (eb *EventBus) DroppedEvents() int64 {
	return eb.droppedEvents.Load()
}

// Close closes all subscriber channels. Safe to call more than once.
func (eb *EventBus) Close() {
	if eb == nil {
		return
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}
