package session

import (
	"sync"
	"time"
)

// Snapshot is one observation of the manager's state, published to
// subscribers on every poll tick and state transition.
type Snapshot struct {
	Recording bool          `json:"recording"`
	Elapsed   time.Duration `json:"elapsed"`
	Amplitude float64       `json:"amplitude"`

	Playing  bool          `json:"playing"`
	Paused   bool          `json:"paused"`
	Progress float64       `json:"progress"`
	Total    time.Duration `json:"total"`

	// LastError is the most recent surfaced error, empty when none or
	// after ClearError.
	LastError string `json:"last_error,omitempty"`
}

// broadcaster fans snapshots out to subscriber channels. Sends never block:
// a subscriber that falls behind loses intermediate snapshots, not the
// stream.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Snapshot
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Snapshot)}
}

// subscribe registers a new observer. The returned cancel function must be
// called when the observer is done; it closes the channel.
func (b *broadcaster) subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *broadcaster) publish(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			// Drop the oldest pending snapshot so the latest one lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
