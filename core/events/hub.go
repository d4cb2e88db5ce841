package events

import (
	"sync"
	"sync/atomic"

	"tipchain/core/types"
)

const defaultHubBuffer = 256

// Envelope pairs a wire event with the hub-assigned sequence number.
type Envelope struct {
	Seq   uint64       `json:"seq"`
	Event *types.Event `json:"event"`
}

type subscriber struct {
	ch       chan Envelope
	lossless bool
	done     chan struct{}
	stop     sync.Once
}

func (s *subscriber) release() { s.stop.Do(func() { close(s.done) }) }

// Hub fans emitted events out to subscribers. Delivery to a regular
// subscriber is non-blocking: when its buffer is full it misses the event and
// the drop is counted. A lossless subscriber instead blocks Emit until it
// takes the event or is cancelled.
type Hub struct {
	mu      sync.RWMutex
	quit    chan struct{}
	quitter sync.Once
	subs    map[uint64]*subscriber
	nextSub uint64
	seq     atomic.Uint64
	dropped atomic.Uint64
	buffer  int
	closed  bool
	onDrop  func()
}

// NewHub constructs a hub with the given per-subscriber buffer size.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &Hub{subs: make(map[uint64]*subscriber), buffer: buffer, quit: make(chan struct{})}
}

// OnDrop registers a callback invoked whenever an event is dropped.
func (h *Hub) OnDrop(fn func()) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

// Emit implements the Emitter interface. Events without a wire payload are ignored.
func (h *Hub) Emit(evt Event) {
	if h == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	wire := payload.Event()
	if wire == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	env := Envelope{Seq: h.seq.Add(1), Event: wire}
	for _, sub := range h.subs {
		next := Envelope{Seq: env.Seq, Event: wire.Clone()}
		if sub.lossless {
			select {
			case sub.ch <- next:
			case <-sub.done:
			case <-h.quit:
			}
			continue
		}
		select {
		case sub.ch <- next:
		default:
			h.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Envelope, func()) {
	return h.subscribe(false)
}

// SubscribeLossless registers a subscriber that never misses an event. Emit
// waits for it, so it must keep draining the channel until it cancels.
func (h *Hub) SubscribeLossless() (<-chan Envelope, func()) {
	return h.subscribe(true)
}

func (h *Hub) subscribe(lossless bool) (<-chan Envelope, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Envelope, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextSub++
	id := h.nextSub
	sub := &subscriber{ch: ch, lossless: lossless, done: make(chan struct{})}
	h.subs[id] = sub
	return ch, func() {
		// Unblock a pending Emit before taking the write lock.
		sub.release()
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub.ch)
		}
	}
}

// Dropped returns the number of undelivered events.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close terminates every subscription. Further emits are discarded.
func (h *Hub) Close() {
	h.quitter.Do(func() { close(h.quit) })
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
