// Package eisenbahn is the messaging layer: a typed MessagePack message
// envelope, IPC/TCP transports, the central XSUB/XPUB broker, PUSH/PULL
// pipeline stages, DEALER/ROUTER request-reply, and the TOML-configured
// topology that wires them together.
//
// Delivery is best-effort and transport-backed; the bus carries no
// durable queue semantics.
package eisenbahn

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by operations on a closed socket wrapper.
var ErrClosed = errors.New("eisenbahn: closed")

// TimeoutError is returned when a request-reply exchange exceeds its
// deadline. The in-flight correlation is abandoned; the server may still
// reply into the void.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("eisenbahn: request timed out after %s", e.Timeout)
}

// ConfigError reports invalid topology configuration. Configuration
// errors abort startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("eisenbahn: config: %s", e.Reason)
}

// CircularDependencyError reports a cycle in the pipeline stage DAG.
type CircularDependencyError struct {
	Stages []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("eisenbahn: circular dependency among stages: %v", e.Stages)
}

// DeserializationError wraps a corrupt payload. Subscribers drop the
// message and log a warning.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("eisenbahn: deserialization failed: %v", e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }
