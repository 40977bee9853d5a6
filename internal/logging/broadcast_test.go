package logging

import (
	"testing"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBroadcaster(10)
	_, lines, cancel := b.Subscribe()
	defer cancel()

	b.Publish("scan started")

	select {
	case got := <-lines:
		if got != "scan started" {
			t.Errorf("got %q", got)
		}
	default:
		t.Fatal("subscriber did not receive the line")
	}
}

func TestCancelUnregisters(t *testing.T) {
	b := NewBroadcaster(10)
	_, lines, cancel := b.Subscribe()
	cancel()

	b.Publish("after cancel")

	select {
	case got := <-lines:
		t.Errorf("cancelled subscriber received %q", got)
	default:
	}
}

func TestHistoryIsBounded(t *testing.T) {
	b := NewBroadcaster(3)
	for _, line := range []string{"1", "2", "3", "4", "5"} {
		b.Publish(line)
	}

	recent := b.Recent()
	if len(recent) != 3 {
		t.Fatalf("history length = %d, want 3", len(recent))
	}
	if recent[0] != "3" || recent[2] != "5" {
		t.Errorf("history should keep the newest lines: %v", recent)
	}
}

func TestSubscribeReplaySeparatesFromLiveDelivery(t *testing.T) {
	b := NewBroadcaster(10)
	b.Publish("before")

	replay, lines, cancel := b.Subscribe()
	defer cancel()

	b.Publish("after")

	if len(replay) != 1 || replay[0] != "before" {
		t.Fatalf("replay = %v, want only the line published before subscribing", replay)
	}
	select {
	case got := <-lines:
		if got != "after" {
			t.Errorf("live line = %q, want %q", got, "after")
		}
	default:
		t.Fatal("line published after subscribing must arrive live")
	}
	select {
	case got := <-lines:
		t.Errorf("unexpected duplicate delivery %q", got)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(10)
	_, _, cancel := b.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; Publish must never stall.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish("line")
	}
}
