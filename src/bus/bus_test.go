package bus

import (
	"encoding/json"
	"testing"

	"github.com/tandemlabs/tandem/src/common"
)

type testEvent struct {
	Type  string `json:"type"`
	Round int    `json:"round"`
}

func TestPublish(t *testing.T) {
	b := NewBus(common.NewTestEntry(t, common.TestLogLevel))

	sub1 := b.Subscribe(4)
	sub2 := b.Subscribe(4)

	if b.Len() != 2 {
		t.Fatalf("bus should have 2 subscribers, not %d", b.Len())
	}

	b.Publish(testEvent{Type: "chal", Round: 7})

	for _, sub := range []*Subscriber{sub1, sub2} {
		msg := <-sub.Events()

		var ev testEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatal(err)
		}

		if ev.Type != "chal" || ev.Round != 7 {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus(common.NewTestEntry(t, common.TestLogLevel))

	sub := b.Subscribe(4)

	b.Unsubscribe(sub)

	if b.Len() != 0 {
		t.Fatalf("bus should be empty, has %d", b.Len())
	}

	if _, ok := <-sub.Events(); ok {
		t.Fatal("events channel should be closed")
	}

	// Unsubscribing twice is a no-op.
	b.Unsubscribe(sub)
}

func TestDropSlowSubscriber(t *testing.T) {
	b := NewBus(common.NewTestEntry(t, common.TestLogLevel))

	slow := b.Subscribe(1)
	fast := b.Subscribe(4)

	b.Publish(testEvent{Round: 1})
	// The slow subscriber's buffer is full now; the next publish drops it.
	b.Publish(testEvent{Round: 2})

	if b.Len() != 1 {
		t.Fatalf("bus should have 1 subscriber left, not %d", b.Len())
	}

	// The slow subscriber keeps its backlog and then sees the channel close.
	if _, ok := <-slow.Events(); !ok {
		t.Fatal("slow subscriber should still receive its buffered event")
	}
	if _, ok := <-slow.Events(); ok {
		t.Fatal("slow subscriber's channel should be closed")
	}

	// The fast subscriber got both events.
	for i := 0; i < 2; i++ {
		if _, ok := <-fast.Events(); !ok {
			t.Fatal("fast subscriber should receive both events")
		}
	}
}
