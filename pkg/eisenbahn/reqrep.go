package eisenbahn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
)

// ReplyToken is the opaque routing identity of a requesting client.
// Servers pass it back verbatim so replies reach the right DEALER.
type ReplyToken []byte

// RequestClient issues requests over a DEALER socket. Concurrent
// in-flight requests are multiplexed by correlation ID; streamed replies
// to one request share its correlation ID and arrive in send order.
type RequestClient struct {
	socket zmq4.Socket

	mu       sync.Mutex
	inflight map[uuid.UUID]chan Message
	closed   bool
}

// NewRequestClient connects a DEALER socket to the service endpoint and
// starts the reply dispatcher.
func NewRequestClient(ctx context.Context, service Transport) (*RequestClient, error) {
	socket := zmq4.NewDealer(ctx)
	if err := socket.Dial(service.Endpoint()); err != nil {
		return nil, fmt.Errorf("dial %s: %w", service, err)
	}
	c := &RequestClient{
		socket:   socket,
		inflight: make(map[uuid.UUID]chan Message),
	}
	go c.dispatch()
	return c, nil
}

// dispatch routes incoming replies to the channel registered for their
// correlation ID. Replies to abandoned correlations go into the void.
func (c *RequestClient) dispatch() {
	for {
		raw, err := c.socket.Recv()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				slog.Warn("request client receive failed", "err", err)
			}
			return
		}
		if len(raw.Frames) == 0 {
			continue
		}
		msg, err := FromBytes(raw.Frames[len(raw.Frames)-1])
		if err != nil {
			slog.Warn("dropping undecodable reply", "err", err)
			continue
		}

		c.mu.Lock()
		ch, ok := c.inflight[msg.CorrelationID]
		c.mu.Unlock()
		if !ok {
			slog.Debug("reply for abandoned correlation", "correlation_id", msg.CorrelationID)
			continue
		}
		select {
		case ch <- msg:
		default:
			slog.Warn("reply channel full, dropping", "correlation_id", msg.CorrelationID)
		}
	}
}

func (c *RequestClient) register(id uuid.UUID) chan Message {
	ch := make(chan Message, 64)
	c.mu.Lock()
	c.inflight[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *RequestClient) unregister(id uuid.UUID) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

func (c *RequestClient) send(msg Message) error {
	b, err := msg.ToBytes()
	if err != nil {
		return err
	}
	return c.socket.Send(zmq4.NewMsg(b))
}

// Request sends one request and waits for a single reply carrying the
// request's correlation ID. Expiry abandons the correlation and returns
// a TimeoutError.
func (c *RequestClient) Request(msg Message, timeout time.Duration) (Message, error) {
	ch := c.register(msg.CorrelationID)
	defer c.unregister(msg.CorrelationID)

	if err := c.send(msg); err != nil {
		return Message{}, err
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-time.After(timeout):
		return Message{}, &TimeoutError{Timeout: timeout}
	}
}

// Stream is a live streamed-reply subscription. Receive messages from C
// until a terminal topic (conventionally ending in ".done") arrives,
// then call Close to abandon the correlation.
type Stream struct {
	C      <-chan Message
	client *RequestClient
	id     uuid.UUID
}

// Close abandons the stream's correlation.
func (s *Stream) Close() { s.client.unregister(s.id) }

// RequestStream sends a request whose server may reply with multiple
// messages. All chunks carry the request's correlation ID and arrive in
// send order.
func (c *RequestClient) RequestStream(msg Message) (*Stream, error) {
	ch := c.register(msg.CorrelationID)
	if err := c.send(msg); err != nil {
		c.unregister(msg.CorrelationID)
		return nil, err
	}
	return &Stream{C: ch, client: c, id: msg.CorrelationID}, nil
}

// Close releases the socket and all in-flight correlations.
func (c *RequestClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.socket.Close()
}

// RequestServer receives requests over a ROUTER socket and sends
// replies routed by ReplyToken. Multiple replies per request (streaming)
// are allowed; each must preserve the request's correlation ID.
type RequestServer struct {
	socket zmq4.Socket
}

// NewRequestServer binds a ROUTER socket at the service endpoint.
func NewRequestServer(ctx context.Context, service Transport) (*RequestServer, error) {
	if err := service.prepareBind(); err != nil {
		return nil, err
	}
	socket := zmq4.NewRouter(ctx)
	if err := socket.Listen(service.Endpoint()); err != nil {
		return nil, fmt.Errorf("bind %s: %w", service, err)
	}
	return &RequestServer{socket: socket}, nil
}

// RecvRequest blocks for the next request, returning the client's
// routing identity alongside the message.
func (s *RequestServer) RecvRequest() (ReplyToken, Message, error) {
	raw, err := s.socket.Recv()
	if err != nil {
		return nil, Message{}, err
	}
	if len(raw.Frames) < 2 {
		return nil, Message{}, &DeserializationError{Err: fmt.Errorf("router frame count %d", len(raw.Frames))}
	}
	token := ReplyToken(append([]byte(nil), raw.Frames[0]...))
	msg, err := FromBytes(raw.Frames[len(raw.Frames)-1])
	if err != nil {
		return nil, Message{}, err
	}
	return token, msg, nil
}

// SendReply routes one reply back to the client identified by token.
func (s *RequestServer) SendReply(token ReplyToken, reply Message) error {
	b, err := reply.ToBytes()
	if err != nil {
		return err
	}
	return s.socket.Send(zmq4.NewMsgFrom(token, b))
}

// Close releases the socket.
func (s *RequestServer) Close() error { return s.socket.Close() }
