package helpers

import (
	"testing"
	"time"

	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/bpmnflow/internal/engine/event"
	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// EventWaiter waits for committed engine events. Create it before
	// triggering the action
	EventWaiter struct {
		consumer topic.Consumer[event.Event]
		filter   EventFilter
		desc     string
	}

	// EventFilter selects the events an EventWaiter counts
	EventFilter func(event.Event) bool
)

// Subscribe creates a waiter for events of the given types on one instance
func (e *TestEngineEnv) Subscribe(
	id api.ProcessInstanceID, types ...api.EventType,
) *EventWaiter {
	return &EventWaiter{
		consumer: e.Events.NewConsumer(),
		filter:   ForInstance(id, types...),
		desc:     string(id),
	}
}

// ForInstance matches events of the given types raised for one instance.
// No types matches every type
func ForInstance(id api.ProcessInstanceID, types ...api.EventType) EventFilter {
	return func(ev event.Event) bool {
		if ev.InstanceID != id {
			return false
		}
		if len(types) == 0 {
			return true
		}
		for _, typ := range types {
			if ev.Type == typ {
				return true
			}
		}
		return false
	}
}

// Wait blocks until count matching events were seen and returns them. The
// consumer stays subscribed: a caravan consumer must not close while the
// engine may still publish to its topic
func (w *EventWaiter) Wait(t *testing.T, count int) []event.Event {
	t.Helper()

	var res []event.Event
	deadline := time.After(defaultTimeout)
	for len(res) < count {
		select {
		case ev, ok := <-w.consumer.Receive():
			if !ok {
				t.Fatalf("event topic closed waiting for %s", w.desc)
			}
			if w.filter(ev) {
				res = append(res, ev)
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %d events of %s", count, w.desc)
		}
	}
	return res
}
