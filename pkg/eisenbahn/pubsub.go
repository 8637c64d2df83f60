package eisenbahn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-zeromq/zmq4"
)

// Publisher sends topic-tagged messages into the broker frontend. Each
// message goes out as two frames: the topic (for prefix filtering) and
// the MessagePack envelope.
type Publisher struct {
	socket zmq4.Socket
}

// NewPublisher connects a PUB socket to the broker frontend.
func NewPublisher(ctx context.Context, frontend Transport) (*Publisher, error) {
	socket := zmq4.NewPub(ctx)
	if err := socket.Dial(frontend.Endpoint()); err != nil {
		return nil, fmt.Errorf("dial %s: %w", frontend, err)
	}
	return &Publisher{socket: socket}, nil
}

// Publish sends one message. Publish failures downgrade to log-and-drop
// at call sites that cannot surface them; the method itself reports the
// error.
func (p *Publisher) Publish(msg Message) error {
	b, err := msg.ToBytes()
	if err != nil {
		return err
	}
	return p.socket.Send(zmq4.NewMsgFrom([]byte(msg.Topic), b))
}

// PublishEvent wraps payload in a fresh envelope and publishes it.
func (p *Publisher) PublishEvent(topic string, payload any) error {
	msg, err := NewMessage(topic, payload)
	if err != nil {
		return err
	}
	return p.Publish(msg)
}

// Close releases the socket.
func (p *Publisher) Close() error { return p.socket.Close() }

// Subscriber receives messages whose topics match subscribed prefixes
// from the broker backend. Delivery is per-publisher FIFO; across
// publishers there is no global order.
type Subscriber struct {
	socket zmq4.Socket
}

// NewSubscriber connects a SUB socket to the broker backend.
func NewSubscriber(ctx context.Context, backend Transport) (*Subscriber, error) {
	socket := zmq4.NewSub(ctx)
	if err := socket.Dial(backend.Endpoint()); err != nil {
		return nil, fmt.Errorf("dial %s: %w", backend, err)
	}
	return &Subscriber{socket: socket}, nil
}

// Subscribe adds a topic prefix filter. An empty prefix receives
// everything.
func (s *Subscriber) Subscribe(topicPrefix string) error {
	return s.socket.SetOption(zmq4.OptionSubscribe, topicPrefix)
}

// Recv blocks for the next matching message. Corrupt envelopes are
// dropped with a warning and the receive continues.
func (s *Subscriber) Recv() (Message, error) {
	for {
		raw, err := s.socket.Recv()
		if err != nil {
			return Message{}, err
		}
		if len(raw.Frames) < 2 {
			slog.Warn("dropping malformed bus frame", "frames", len(raw.Frames))
			continue
		}
		msg, err := FromBytes(raw.Frames[1])
		if err != nil {
			slog.Warn("dropping undecodable message", "err", err)
			continue
		}
		return msg, nil
	}
}

// Close releases the socket.
func (s *Subscriber) Close() error { return s.socket.Close() }
