package eisenbahn

import (
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// CurrentVersion stamps newly created envelopes. Consumers check the
// envelope version before decoding the payload; a future bump must stay
// readable one step back.
const CurrentVersion uint16 = 1

// Message is the wire-format envelope for inter-component communication.
// The topic routes PUB/SUB delivery; the correlation ID ties replies
// (including streamed chunks) back to their originating request.
// Messages are never mutated after creation.
type Message struct {
	Topic         string    `msgpack:"topic"`
	Payload       []byte    `msgpack:"payload"`
	Timestamp     time.Time `msgpack:"timestamp"`
	CorrelationID uuid.UUID `msgpack:"correlation_id"`
	Version       uint16    `msgpack:"version"`
}

// NewMessage serializes payload with MessagePack, generates a fresh
// correlation ID, and stamps the current time.
func NewMessage(topic string, payload any) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:         topic,
		Payload:       b,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New(),
		Version:       CurrentVersion,
	}, nil
}

// WithCorrelation creates a message carrying an explicit correlation ID,
// for replies and continuations.
func WithCorrelation(topic string, payload any, correlationID uuid.UUID) (Message, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:         topic,
		Payload:       b,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Version:       CurrentVersion,
	}, nil
}

// Decode deserializes the inner payload into out.
func (m Message) Decode(out any) error {
	if err := msgpack.Unmarshal(m.Payload, out); err != nil {
		return &DeserializationError{Err: err}
	}
	return nil
}

// ToBytes serializes the whole envelope with MessagePack.
func (m Message) ToBytes() ([]byte, error) {
	return msgpack.Marshal(m)
}

// FromBytes deserializes an envelope.
func FromBytes(b []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Message{}, &DeserializationError{Err: err}
	}
	return m, nil
}
