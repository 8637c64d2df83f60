package eisenbahn

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

// PipelineSender pushes work items into a pipeline stage. Connected
// receivers pull round-robin, so each message is delivered to exactly
// one receiver. Pipelines do not survive restarts; they are not durable
// queues.
type PipelineSender struct {
	socket zmq4.Socket
}

// NewPipelineSender binds a PUSH socket at the stage endpoint.
func NewPipelineSender(ctx context.Context, stage Transport) (*PipelineSender, error) {
	if err := stage.prepareBind(); err != nil {
		return nil, err
	}
	socket := zmq4.NewPush(ctx)
	if err := socket.Listen(stage.Endpoint()); err != nil {
		return nil, fmt.Errorf("bind %s: %w", stage, err)
	}
	return &PipelineSender{socket: socket}, nil
}

// ConnectPipelineSender dials an already-bound stage endpoint instead of
// binding it (multiple senders feeding one stage).
func ConnectPipelineSender(ctx context.Context, stage Transport) (*PipelineSender, error) {
	socket := zmq4.NewPush(ctx)
	if err := socket.Dial(stage.Endpoint()); err != nil {
		return nil, fmt.Errorf("dial %s: %w", stage, err)
	}
	return &PipelineSender{socket: socket}, nil
}

// Send pushes one message into the pipeline.
func (p *PipelineSender) Send(msg Message) error {
	b, err := msg.ToBytes()
	if err != nil {
		return err
	}
	return p.socket.Send(zmq4.NewMsg(b))
}

// Close releases the socket.
func (p *PipelineSender) Close() error { return p.socket.Close() }

// PipelineReceiver pulls work items from a pipeline stage.
type PipelineReceiver struct {
	socket zmq4.Socket
}

// NewPipelineReceiver connects a PULL socket to the stage endpoint.
func NewPipelineReceiver(ctx context.Context, stage Transport) (*PipelineReceiver, error) {
	socket := zmq4.NewPull(ctx)
	if err := socket.Dial(stage.Endpoint()); err != nil {
		return nil, fmt.Errorf("dial %s: %w", stage, err)
	}
	return &PipelineReceiver{socket: socket}, nil
}

// Recv blocks for the next work item.
func (p *PipelineReceiver) Recv() (Message, error) {
	raw, err := p.socket.Recv()
	if err != nil {
		return Message{}, err
	}
	if len(raw.Frames) == 0 {
		return Message{}, &DeserializationError{Err: fmt.Errorf("empty frame")}
	}
	return FromBytes(raw.Frames[0])
}

// Close releases the socket.
func (p *PipelineReceiver) Close() error { return p.socket.Close() }
