package eisenbahn

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ipcDir is where IPC socket files live.
const ipcDir = "/tmp/stupid-db"

// TransportKind discriminates Transport variants.
type TransportKind int

const (
	// KindIPC is a Unix-domain socket for same-host communication.
	KindIPC TransportKind = iota
	// KindTCP is TCP for distributed deployment.
	KindTCP
)

// Transport locates one socket endpoint.
type Transport struct {
	Kind TransportKind
	// Name is the IPC socket name (Kind == KindIPC).
	Name string
	// Host and Port address a TCP endpoint (Kind == KindTCP).
	Host string
	Port uint16
}

// IPC creates an IPC transport. The name becomes a path component under
// /tmp/stupid-db/.
func IPC(name string) Transport {
	return Transport{Kind: KindIPC, Name: name}
}

// TCP creates a TCP transport.
func TCP(host string, port uint16) Transport {
	return Transport{Kind: KindTCP, Host: host, Port: port}
}

// Endpoint returns the socket endpoint address string.
func (t Transport) Endpoint() string {
	switch t.Kind {
	case KindTCP:
		return fmt.Sprintf("tcp://%s:%d", t.Host, t.Port)
	default:
		return fmt.Sprintf("ipc://%s/%s.sock", ipcDir, t.Name)
	}
}

func (t Transport) String() string { return t.Endpoint() }

// socketPath returns the filesystem path of an IPC endpoint.
func (t Transport) socketPath() string {
	return strings.TrimPrefix(t.Endpoint(), "ipc://")
}

// EnsureIPCDir creates the parent directory of an IPC socket. The
// directory must exist before binding. No-op for TCP.
func (t Transport) EnsureIPCDir() error {
	if t.Kind != KindIPC {
		return nil
	}
	return os.MkdirAll(filepath.Dir(t.socketPath()), 0o755)
}

// RemoveStaleSocket deletes a leftover socket file from a previous run.
// IPC sockets are regular files; a process that exits without cleanup
// leaves the file behind and the next bind fails with address-in-use.
// No-op for TCP or when no file exists.
func (t Transport) RemoveStaleSocket() error {
	if t.Kind != KindIPC {
		return nil
	}
	path := t.socketPath()
	err := os.Remove(path)
	if err == nil {
		slog.Debug("removed stale IPC socket", "path", path)
		return nil
	}
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// prepareBind performs the IPC hygiene steps before binding.
func (t Transport) prepareBind() error {
	if err := t.EnsureIPCDir(); err != nil {
		return err
	}
	return t.RemoveStaleSocket()
}

// ParseEndpoint parses "ipc://..." and "tcp://host:port" endpoint
// strings back into a Transport.
func ParseEndpoint(endpoint string) Transport {
	if path, ok := strings.CutPrefix(endpoint, "ipc://"); ok {
		base := filepath.Base(path)
		return IPC(strings.TrimSuffix(base, ".sock"))
	}
	if addr, ok := strings.CutPrefix(endpoint, "tcp://"); ok {
		host, portStr, found := strings.Cut(addr, ":")
		if !found {
			return TCP(addr, 5555)
		}
		// rsplit: the port is after the last colon (IPv6-safe enough for
		// the host formats the config allows).
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host, portStr = addr[:i], addr[i+1:]
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			port = 5555
		}
		return TCP(host, uint16(port))
	}
	return IPC("unknown")
}
