// Package logging fans log records out to live stream consumers, keeping a
// short history so a freshly connected consumer sees recent context.
package logging

import (
	"sync"
)

const subscriberBuffer = 64

// Broadcaster distributes log lines to any number of subscribers. A slow
// subscriber drops lines instead of blocking the logger.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan string]struct{}
	recent []string
	max    int
}

// NewBroadcaster keeps up to history recent lines for replay.
func NewBroadcaster(history int) *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan string]struct{}),
		max:  history,
	}
}

// Publish delivers line to every subscriber and appends it to the history.
func (b *Broadcaster) Publish(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, line)
	if len(b.recent) > b.max {
		b.recent = b.recent[len(b.recent)-b.max:]
	}

	for ch := range b.subs {
		select {
		case ch <- line:
		default:
			// Subscriber is not keeping up; drop rather than stall.
		}
	}
}

// Subscribe registers a listener and returns the replay history as of the
// registration. Snapshot and registration happen under one lock, so a line is
// either in the replay or delivered live, never both. The returned cancel
// function unregisters the listener and must be called when the consumer
// disconnects.
func (b *Broadcaster) Subscribe() ([]string, <-chan string, func()) {
	ch := make(chan string, subscriberBuffer)

	b.mu.Lock()
	replay := make([]string, len(b.recent))
	copy(replay, b.recent)
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return replay, ch, cancel
}

// Recent returns a copy of the replay history, oldest first.
func (b *Broadcaster) Recent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.recent))
	copy(out, b.recent)
	return out
}
