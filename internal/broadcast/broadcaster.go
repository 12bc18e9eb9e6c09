package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/abandoned-explorer/internal/metrics"
	"github.com/mr1hm/abandoned-explorer/internal/models"
)

const defaultBuffer = 100

// Broadcaster fans newly stored locations out to stream subscribers.
type Broadcaster struct {
	subscribers map[uint64]chan models.Location
	nextID      atomic.Uint64
	buffer      int
	metrics     *metrics.Metrics
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster(buffer int, m *metrics.Metrics) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broadcaster{
		subscribers: make(map[uint64]chan models.Location),
		buffer:      buffer,
		metrics:     m,
	}
}

// Subscribe registers a stream. After Close the returned channel is already
// closed.
func (b *Broadcaster) Subscribe() (uint64, <-chan models.Location) {
	id := b.nextID.Add(1)
	ch := make(chan models.Location, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	b.updateGauge()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
		b.updateGauge()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(loc models.Location) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- loc:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.updateGauge()
}

// updateGauge must be called with mu held.
func (b *Broadcaster) updateGauge() {
	if b.metrics != nil {
		b.metrics.StreamSubscribers.Set(float64(len(b.subscribers)))
	}
}
