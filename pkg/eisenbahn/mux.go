package eisenbahn

import (
	"log/slog"

	"github.com/stupid-db/stupid-db/pkg/trie"
)

// Handler processes one received message.
type Handler func(Message)

// ServeMux routes subscribed messages to handlers by topic pattern.
// Patterns use the bus topic grammar: exact dot-separated segments,
// "+" for one segment, trailing "#" for the rest. The most specific
// pattern wins.
type ServeMux struct {
	routes *trie.Trie[Handler]
}

// NewServeMux creates an empty mux.
func NewServeMux() *ServeMux {
	return &ServeMux{routes: trie.New[Handler]()}
}

// Handle registers a handler for a topic pattern.
func (m *ServeMux) Handle(pattern string, handler Handler) error {
	return m.routes.Set(pattern, handler)
}

// Dispatch routes one message; unrouted topics are dropped with a debug
// log.
func (m *ServeMux) Dispatch(msg Message) {
	handler, ok := m.routes.Match(msg.Topic)
	if !ok {
		slog.Debug("no route for topic", "topic", msg.Topic)
		return
	}
	handler(msg)
}

// SubscriptionPrefixes returns the literal prefix of every registered
// pattern (the segments before the first wildcard), for wiring the mux
// to Subscriber.Subscribe calls.
func (m *ServeMux) SubscriptionPrefixes() []string {
	var prefixes []string
	m.routes.Walk(func(pattern string, _ Handler) {
		prefix := pattern
		for i := 0; i < len(pattern); i++ {
			if pattern[i] == '+' || pattern[i] == '#' {
				prefix = pattern[:i]
				break
			}
		}
		prefixes = append(prefixes, prefix)
	})
	return prefixes
}

// Serve pulls messages from the subscriber and dispatches until the
// receive fails (socket closed or context canceled).
func (m *ServeMux) Serve(sub *Subscriber) error {
	for {
		msg, err := sub.Recv()
		if err != nil {
			return err
		}
		m.Dispatch(msg)
	}
}
