package agent

import "github.com/google/uuid"

// NewScriptedHandle returns a handle whose event stream replays the given
// events and then closes. It backs fake adapters in tests and dry runs.
func NewScriptedHandle(events ...Event) *Handle {
	h := &Handle{
		ID:     uuid.NewString(),
		events: make(chan Event, len(events)+1),
		cancel: func() {},
	}
	for _, ev := range events {
		h.events <- ev
	}
	close(h.events)
	return h
}
