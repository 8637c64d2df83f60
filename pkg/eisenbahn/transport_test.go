package eisenbahn_test

import (
	"testing"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
)

func TestIPCEndpoint(t *testing.T) {
	tr := eisenbahn.IPC("broker")
	if got := tr.Endpoint(); got != "ipc:///tmp/stupid-db/broker.sock" {
		t.Fatalf("Endpoint = %q", got)
	}
}

func TestTCPEndpoint(t *testing.T) {
	tr := eisenbahn.TCP("127.0.0.1", 5555)
	if got := tr.Endpoint(); got != "tcp://127.0.0.1:5555" {
		t.Fatalf("Endpoint = %q", got)
	}
}

func TestStringMatchesEndpoint(t *testing.T) {
	tr := eisenbahn.TCP("localhost", 9090)
	if tr.String() != tr.Endpoint() {
		t.Fatalf("String = %q, Endpoint = %q", tr.String(), tr.Endpoint())
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		endpoint string
		want     eisenbahn.Transport
	}{
		{"ipc:///tmp/stupid-db/broker-frontend.sock", eisenbahn.IPC("broker-frontend")},
		{"tcp://10.0.0.1:6000", eisenbahn.TCP("10.0.0.1", 6000)},
		{"tcp://localhost:bad", eisenbahn.TCP("localhost", 5555)},
	}
	for _, c := range cases {
		if got := eisenbahn.ParseEndpoint(c.endpoint); got != c.want {
			t.Fatalf("ParseEndpoint(%q) = %+v, want %+v", c.endpoint, got, c.want)
		}
	}

	// Parse is the inverse of Endpoint for both kinds.
	for _, tr := range []eisenbahn.Transport{eisenbahn.IPC("x"), eisenbahn.TCP("h", 1)} {
		if got := eisenbahn.ParseEndpoint(tr.Endpoint()); got != tr {
			t.Fatalf("round trip %+v → %+v", tr, got)
		}
	}
}
