package eventbus

import "time"

// Event represents an application event published to the bus.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)

// Filter returns a Listener that only forwards events whose type is one of types.
func Filter(l Listener, types ...string) Listener {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(e Event) {
		if _, ok := allowed[e.Type]; ok {
			l(e)
		}
	}
}
