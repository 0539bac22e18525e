package engine

import "testing"

// TestBusFanOut verifies delivery to multiple subscribers.
func TestBusFanOut(t *testing.T) {
	b := NewBus()
	_, ch1 := b.Subscribe()
	_, ch2 := b.Subscribe()

	b.Publish(Event{Serial: "SN100", Changes: ChangeSet{StateChanged: true}})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Serial != "SN100" {
				t.Errorf("subscriber %d serial = %q, want SN100", i, ev.Serial)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

// TestBusUnsubscribe verifies channel close and removal.
func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	id, ch := b.Subscribe()

	b.Unsubscribe(id)
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}

	// Unknown ids are a no-op.
	b.Unsubscribe("missing")
}

// TestBusDropsWhenFull verifies a stalled subscriber does not block
// Publish.
func TestBusDropsWhenFull(t *testing.T) {
	b := NewBus()
	_, ch := b.Subscribe()

	for range eventBuffer + 5 {
		b.Publish(Event{Serial: "SN100"})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != eventBuffer {
		t.Errorf("received = %d, want %d (overflow dropped)", received, eventBuffer)
	}
}
