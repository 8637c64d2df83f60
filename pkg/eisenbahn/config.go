package eisenbahn

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the full messaging-layer topology, parsed from
// eisenbahn.toml with environment-variable overrides.
type Config struct {
	Broker    BrokerConfig             `toml:"broker"`
	Workers   map[string]WorkerConfig  `toml:"workers"`
	Pipeline  PipelineTopology         `toml:"pipeline"`
	Transport TransportConfig          `toml:"transport"`
	Services  map[string]ServiceConfig `toml:"services"`
}

// BrokerConfig locates the central PUB/SUB hub.
type BrokerConfig struct {
	// Frontend is where publishers send (XSUB socket).
	Frontend string `toml:"frontend"`
	// Backend is where subscribers listen (XPUB socket).
	Backend string `toml:"backend"`
	// MetricsPort optionally serves broker metrics.
	MetricsPort uint16 `toml:"metrics_port"`
}

// WorkerConfig describes a named worker process.
type WorkerConfig struct {
	Binary        string            `toml:"binary"`
	Subscriptions []string          `toml:"subscriptions"`
	Pipelines     []string          `toml:"pipelines"`
	Instances     uint32            `toml:"instances"`
	Env           map[string]string `toml:"env"`
}

// PipelineTopology defines the DAG of PUSH/PULL processing stages.
type PipelineTopology struct {
	Stages map[string]StageConfig `toml:"stages"`
}

// StageConfig is a single pipeline stage.
type StageConfig struct {
	// After lists upstream stages feeding this one; empty = entry point.
	After []string `toml:"after"`
	// Endpoint overrides the stage's PUSH/PULL endpoint.
	Endpoint string `toml:"endpoint"`
	// Concurrency is the number of parallel receivers.
	Concurrency uint32 `toml:"concurrency"`
}

// TransportConfig carries the transport defaults.
type TransportConfig struct {
	// Kind is "ipc" or "tcp".
	Kind        string `toml:"kind"`
	DefaultHost string `toml:"default_host"`
	BasePort    uint16 `toml:"base_port"`
}

// ServiceConfig is a named request/reply endpoint.
type ServiceConfig struct {
	Endpoint    string `toml:"endpoint"`
	TimeoutSecs uint64 `toml:"timeout_secs"`
}

// Default endpoints for single-host deployment.
const (
	defaultBrokerFrontend = "ipc:///tmp/stupid-db/broker-frontend.sock"
	defaultBrokerBackend  = "ipc:///tmp/stupid-db/broker-backend.sock"
	defaultServiceTimeout = 30
)

// LocalConfig returns the single-host IPC topology.
func LocalConfig() Config {
	return Config{
		Broker: BrokerConfig{
			Frontend: defaultBrokerFrontend,
			Backend:  defaultBrokerBackend,
		},
		Transport: TransportConfig{
			Kind:        "ipc",
			DefaultHost: "127.0.0.1",
			BasePort:    5560,
		},
	}
}

// ConfigFromTOML parses, applies env overrides, fills defaults, and
// validates.
func ConfigFromTOML(data string) (Config, error) {
	cfg := Config{}
	if _, err := toml.Decode(data, &cfg); err != nil {
		return Config{}, &ConfigError{Reason: err.Error()}
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromFile loads a TOML topology file.
func ConfigFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ConfigFromTOML(string(data))
}

func (c *Config) applyDefaults() {
	if c.Broker.Frontend == "" {
		c.Broker.Frontend = defaultBrokerFrontend
	}
	if c.Broker.Backend == "" {
		c.Broker.Backend = defaultBrokerBackend
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = "ipc"
	}
	if c.Transport.DefaultHost == "" {
		c.Transport.DefaultHost = "127.0.0.1"
	}
	if c.Transport.BasePort == 0 {
		c.Transport.BasePort = 5560
	}
	for name, w := range c.Workers {
		if w.Instances == 0 {
			w.Instances = 1
			c.Workers[name] = w
		}
	}
	for name, s := range c.Pipeline.Stages {
		if s.Concurrency == 0 {
			s.Concurrency = 1
			c.Pipeline.Stages[name] = s
		}
	}
	for name, s := range c.Services {
		if s.TimeoutSecs == 0 {
			s.TimeoutSecs = defaultServiceTimeout
			c.Services[name] = s
		}
	}
}

// applyEnvOverrides applies EISENBAHN_SECTION_KEY overrides:
// EISENBAHN_BROKER_FRONTEND, EISENBAHN_BROKER_BACKEND,
// EISENBAHN_BROKER_METRICS_PORT, EISENBAHN_TRANSPORT_KIND,
// EISENBAHN_TRANSPORT_DEFAULT_HOST, EISENBAHN_TRANSPORT_BASE_PORT.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EISENBAHN_BROKER_FRONTEND"); v != "" {
		c.Broker.Frontend = v
	}
	if v := os.Getenv("EISENBAHN_BROKER_BACKEND"); v != "" {
		c.Broker.Backend = v
	}
	if v := os.Getenv("EISENBAHN_BROKER_METRICS_PORT"); v != "" {
		if port, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.Broker.MetricsPort = uint16(port)
		}
	}
	if v := os.Getenv("EISENBAHN_TRANSPORT_KIND"); v != "" {
		c.Transport.Kind = v
	}
	if v := os.Getenv("EISENBAHN_TRANSPORT_DEFAULT_HOST"); v != "" {
		c.Transport.DefaultHost = v
	}
	if v := os.Getenv("EISENBAHN_TRANSPORT_BASE_PORT"); v != "" {
		if port, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.Transport.BasePort = uint16(port)
		}
	}
}

// Validate checks stage references, DAG acyclicity, worker pipeline
// references, and the transport kind. Invalid configuration is fatal at
// startup.
func (c *Config) Validate() error {
	for name, stage := range c.Pipeline.Stages {
		for _, dep := range stage.After {
			if _, ok := c.Pipeline.Stages[dep]; !ok {
				return &ConfigError{Reason: fmt.Sprintf(
					"pipeline stage %q references unknown upstream stage %q", name, dep)}
			}
		}
	}
	if _, err := c.PipelineOrder(); err != nil {
		return err
	}
	for name, worker := range c.Workers {
		for _, p := range worker.Pipelines {
			if len(c.Pipeline.Stages) > 0 {
				if _, ok := c.Pipeline.Stages[p]; !ok {
					return &ConfigError{Reason: fmt.Sprintf(
						"worker %q references unknown pipeline stage %q", name, p)}
				}
			}
		}
	}
	switch c.Transport.Kind {
	case "ipc", "tcp":
	default:
		return &ConfigError{Reason: fmt.Sprintf(
			"invalid transport kind %q, expected 'ipc' or 'tcp'", c.Transport.Kind)}
	}
	return nil
}

// BrokerFrontendTransport resolves the broker's frontend endpoint.
func (c *Config) BrokerFrontendTransport() Transport {
	return ParseEndpoint(c.Broker.Frontend)
}

// BrokerBackendTransport resolves the broker's backend endpoint.
func (c *Config) BrokerBackendTransport() Transport {
	return ParseEndpoint(c.Broker.Backend)
}

// ServiceTransport resolves a named service endpoint; ok is false for
// unknown services.
func (c *Config) ServiceTransport(name string) (Transport, bool) {
	svc, ok := c.Services[name]
	if !ok {
		return Transport{}, false
	}
	return ParseEndpoint(svc.Endpoint), true
}

// StageTransport resolves a pipeline stage endpoint, deriving one from
// the transport defaults when the stage has no explicit endpoint. Derived
// endpoints are stable: stages are sorted by name and numbered from the
// base port (TCP) or named after the stage (IPC).
func (c *Config) StageTransport(name string) (Transport, bool) {
	stage, ok := c.Pipeline.Stages[name]
	if !ok {
		return Transport{}, false
	}
	if stage.Endpoint != "" {
		return ParseEndpoint(stage.Endpoint), true
	}
	if c.Transport.Kind == "tcp" {
		names := make([]string, 0, len(c.Pipeline.Stages))
		for n := range c.Pipeline.Stages {
			names = append(names, n)
		}
		sort.Strings(names)
		for i, n := range names {
			if n == name {
				return TCP(c.Transport.DefaultHost, c.Transport.BasePort+uint16(i)), true
			}
		}
	}
	return IPC("stage-" + name), true
}

// PipelineOrder returns the stages topologically sorted with Kahn's
// algorithm (upstream before downstream). A cycle is a fatal
// configuration error.
func (c *Config) PipelineOrder() ([]string, error) {
	stages := c.Pipeline.Stages
	if len(stages) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(stages))
	dependents := make(map[string][]string, len(stages))
	for name := range stages {
		inDegree[name] = 0
	}
	for name, stage := range stages {
		for _, dep := range stage.After {
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	sorted := make([]string, 0, len(stages))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)

		next := append([]string(nil), dependents[node]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(stages) {
		var inCycle []string
		for name, deg := range inDegree {
			if deg > 0 {
				inCycle = append(inCycle, name)
			}
		}
		sort.Strings(inCycle)
		return nil, &CircularDependencyError{Stages: inCycle}
	}
	return sorted, nil
}
