package notify

import (
	"sync"
	"testing"
	"time"
)

func TestHubPublishReachesAllSubscribers(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe(4)
	b := h.Subscribe(4)
	defer a.Close()
	defer b.Close()

	h.Publish(Event{Type: EventNewJob, JobID: "job-1", Pending: 1})

	for i, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.Events():
			if ev.Type != EventNewJob || ev.JobID != "job-1" || ev.Pending != 1 {
				t.Errorf("subscriber %d got %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i)
		}
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	slow := h.Subscribe(1)
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(Event{Type: EventQueueDepth, Pending: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := h.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
	ev := <-slow.Events()
	if ev.Pending != 0 {
		t.Errorf("expected first event to be retained, got pending=%d", ev.Pending)
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe(1)

	sub.Close()
	sub.Close()

	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("expected events channel to be closed")
	}

	// Publishing after close must not panic on the closed channel.
	h.Publish(Event{Type: EventQueueDepth})
}

func TestHubConcurrentSubscribePublish(t *testing.T) {
	h := NewHub(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := h.Subscribe(2)
			h.Publish(Event{Type: EventQueueDepth, Pending: 1})
			sub.Close()
		}()
	}
	wg.Wait()

	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}
}
