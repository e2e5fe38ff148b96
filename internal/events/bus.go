package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMailboxSize is the bounded capacity of each subscriber mailbox.
const DefaultMailboxSize = 100

// Subscriber holds a bounded mailbox of bus messages. Slow consumers
// lose the oldest messages first; the Dropped counter records how many.
type Subscriber struct {
	id      string
	ch      chan Message
	dropped atomic.Uint64
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// C returns the receive side of the mailbox.
func (s *Subscriber) C() <-chan Message {
	return s.ch
}

// Dropped returns how many messages were discarded because the mailbox
// was full.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Bus fans out clock lifecycle events to subscriber mailboxes.
// Publish never blocks: a full mailbox drops its oldest message so that
// a slow SSE client can never stall the tick loop.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	mailboxSize int
	log         zerolog.Logger
}

// NewBus creates an event bus with the default mailbox capacity.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		mailboxSize: DefaultMailboxSize,
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a new subscriber and returns its mailbox handle.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.New().String(),
		ch: make(chan Message, b.mailboxSize),
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	b.log.Debug().Str("subscriber_id", sub.id).Msg("Subscriber registered")
	return sub
}

// Unsubscribe removes a subscriber. The bus retains no references after
// this call; the mailbox channel is left to the garbage collector so a
// consumer mid-receive never reads from a closed channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	delete(b.subscribers, sub.id)
	b.mu.Unlock()

	b.log.Debug().Str("subscriber_id", sub.id).Msg("Subscriber removed")
}

// Publish delivers an event to every mailbox without blocking. When a
// mailbox is full the oldest message is discarded and the subscriber's
// drop counter advances.
func (b *Bus) Publish(event EventType, data interface{}) {
	msg := Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- msg:
		default:
			// Mailbox full: evict the oldest message, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			sub.dropped.Add(1)
			select {
			case sub.ch <- msg:
			default:
				sub.dropped.Add(1)
			}
			b.log.Warn().
				Str("subscriber_id", sub.id).
				Str("event", string(event)).
				Uint64("dropped_total", sub.dropped.Load()).
				Msg("Subscriber mailbox full, dropping oldest event")
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
