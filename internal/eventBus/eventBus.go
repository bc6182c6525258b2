package eventBus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mote-scheduler/internal/packet"
)

var log = logrus.WithField("prefix", "eventBus")

type EventType string

const (
	EventMoteLinked         EventType = "MOTE_LINKED"
	EventMoteAllocated      EventType = "MOTE_ALLOCATED"
	EventScheduleComputed   EventType = "SCHEDULE_COMPUTED"
	EventScheduleRejected   EventType = "SCHEDULE_REJECTED"
	EventSchedulePublished  EventType = "SCHEDULE_PUBLISHED"
	EventScheduleDownloaded EventType = "SCHEDULE_DOWNLOADED"
)

// Event holds details that subscribers (logs, websocket clients, metrics) need.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     uuid.UUID      `json:"run_id"`
	MoteID    uint32         `json:"mote_id,omitempty"`
	ParentID  uint32         `json:"parent_id,omitempty"`
	Record    *packet.Record `json:"record,omitempty"`
	Length    int            `json:"length,omitempty"`
	Payload   string         `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventBus manages a set of subscribers and publishes events to them.
type EventBus struct {
	subscribers []chan Event
	mu          sync.RWMutex
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan Event, 0),
	}
}

// Publish sends an event to all subscribers. A nil bus discards the event.
func (eb *EventBus) Publish(e Event) {
	if eb == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, sub := range eb.subscribers {
		// Use a non-blocking send in case a subscriber is busy.
		select {
		case sub <- e:
		default:
			log.WithField("type", e.Type).Warn("Dropping event: subscriber channel is full")
		}
	}
}

// Subscribe returns a new channel that will receive published events.
func (eb *EventBus) Subscribe() chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan Event, 256)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Unsubscribe removes ch and closes it.
func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}
