package eisenbahn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/go-zeromq/zmq4"
	"golang.org/x/sync/errgroup"
)

// BrokerOptions configures the central PUB/SUB broker.
type BrokerOptions struct {
	// Frontend is where publishers send messages (XSUB socket).
	Frontend Transport
	// Backend is where subscribers listen (XPUB socket).
	Backend Transport
	// MetricsPort serves a JSON /metrics endpoint when non-zero.
	MetricsPort uint16
}

// BrokerMetrics counts forwarded messages per topic.
type BrokerMetrics struct {
	mu     sync.Mutex
	topics map[string]uint64
	total  uint64
}

// Total returns the number of messages forwarded.
func (m *BrokerMetrics) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// TopicCounts returns a copy of the per-topic counters.
func (m *BrokerMetrics) TopicCounts() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.topics))
	for k, v := range m.topics {
		out[k] = v
	}
	return out
}

func (m *BrokerMetrics) record(topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[topic]++
	m.total++
}

// Broker is the central PUB/SUB proxy: every frame received on the XSUB
// frontend is forwarded to the XPUB backend, and subscription frames
// travel the opposite way so publishers see upstream subscriptions.
// Topic filtering is prefix-based and happens at the XPUB side.
type Broker struct {
	opts    BrokerOptions
	metrics *BrokerMetrics

	cancel context.CancelFunc
}

// NewBroker creates a broker with the given options.
func NewBroker(opts BrokerOptions) *Broker {
	return &Broker{
		opts:    opts,
		metrics: &BrokerMetrics{topics: make(map[string]uint64)},
	}
}

// Metrics exposes the per-topic counters.
func (b *Broker) Metrics() *BrokerMetrics { return b.metrics }

// Run binds both sockets and forwards frames until the context is
// canceled or a socket fails.
func (b *Broker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	defer cancel()

	for _, t := range []Transport{b.opts.Frontend, b.opts.Backend} {
		if err := t.prepareBind(); err != nil {
			return fmt.Errorf("prepare %s: %w", t, err)
		}
	}

	frontend := zmq4.NewXSub(ctx)
	defer frontend.Close()
	backend := zmq4.NewXPub(ctx)
	defer backend.Close()

	if err := frontend.Listen(b.opts.Frontend.Endpoint()); err != nil {
		return fmt.Errorf("bind frontend %s: %w", b.opts.Frontend, err)
	}
	if err := backend.Listen(b.opts.Backend.Endpoint()); err != nil {
		return fmt.Errorf("bind backend %s: %w", b.opts.Backend, err)
	}

	slog.Info("broker running",
		"frontend", b.opts.Frontend.Endpoint(),
		"backend", b.opts.Backend.Endpoint())

	g, ctx := errgroup.WithContext(ctx)

	// Publisher traffic: frontend → backend, counting topics.
	g.Go(func() error {
		for {
			msg, err := frontend.Recv()
			if err != nil {
				return contextOr(ctx, err)
			}
			if len(msg.Frames) > 0 {
				b.metrics.record(string(msg.Frames[0]))
			}
			if err := backend.Send(msg); err != nil {
				return contextOr(ctx, err)
			}
		}
	})

	// Subscription frames: backend → frontend.
	g.Go(func() error {
		for {
			msg, err := backend.Recv()
			if err != nil {
				return contextOr(ctx, err)
			}
			if err := frontend.Send(msg); err != nil {
				return contextOr(ctx, err)
			}
		}
	})

	if b.opts.MetricsPort > 0 {
		g.Go(func() error { return b.serveMetrics(ctx) })
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown stops the broker.
func (b *Broker) Shutdown() {
	if b.cancel != nil {
		b.cancel()
	}
}

// contextOr prefers reporting context cancellation over the socket
// error it caused.
func contextOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// serveMetrics exposes per-topic counters as JSON on /metrics.
func (b *Broker) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		counts := b.metrics.TopicCounts()
		topics := make([]string, 0, len(counts))
		for t := range counts {
			topics = append(topics, t)
		}
		sort.Strings(topics)

		type topicCount struct {
			Topic string `json:"topic"`
			Count uint64 `json:"count"`
		}
		out := struct {
			Total  uint64       `json:"total"`
			Topics []topicCount `json:"topics"`
		}{Total: b.metrics.Total()}
		for _, t := range topics {
			out.Topics = append(out.Topics, topicCount{Topic: t, Count: counts[t]})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	srv := &http.Server{Handler: mux}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", b.opts.MetricsPort))
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	slog.Info("broker metrics endpoint", "port", b.opts.MetricsPort)
	if err := srv.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}
