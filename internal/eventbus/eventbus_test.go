package eventbus

import (
	"sync"
	"testing"
)

func TestPublishFanOut(t *testing.T) {
	bus := New()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish("hello")
	if got := <-a; got != "hello" {
		t.Errorf("subscriber a got %v", got)
	}
	if got := <-b; got != "hello" {
		t.Errorf("subscriber b got %v", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Error("channel not closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish("late")
}

func TestPublishNonBlocking(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	// Overflow the subscriber buffer; extra events are dropped, not blocked.
	for i := 0; i < 64; i++ {
		bus.Publish(i)
	}
	drained := 0
	for {
		select {
		case <-sub:
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 || drained > 16 {
		t.Errorf("drained %d events, want 1..16", drained)
	}
}

func TestCloseTerminatesSubscribers(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Close()
	if _, ok := <-sub; ok {
		t.Error("channel not closed on bus close")
	}
	// Idempotent close and post-close operations are safe.
	bus.Close()
	bus.Publish("ignored")
	if late := bus.Subscribe(); late == nil {
		t.Error("subscribe after close returned nil channel")
	} else if _, ok := <-late; ok {
		t.Error("post-close subscriber channel not closed")
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	done := make(chan struct{})
	var received int
	go func() {
		defer close(done)
		for range sub {
			received++
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bus.Publish(i)
		}(i)
	}
	wg.Wait()
	bus.Close()
	<-done
	if received == 0 {
		t.Error("no events received")
	}
}
