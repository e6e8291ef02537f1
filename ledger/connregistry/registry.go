package connregistry

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"
	"sync"

	"xdao.co/caspub/ledger"
)

// Connector is a build-time plugin that can dial a ledger.Conn.
//
// Connectors typically register themselves in init():
//
//	connregistry.MustRegister(connregistry.Connector{ ... })
//
// The binary must import the connector package for registration to occur.
type Connector struct {
	// Name is also the endpoint scheme the connector claims (e.g. "mem",
	// "grpc").
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds connector-specific flags to fs.
	// It must be safe to call exactly once per process.
	RegisterFlags func(fs *flag.FlagSet)

	// Dial opens a connection to endpoint, using values parsed into flags
	// registered by RegisterFlags.
	Dial func(ctx context.Context, endpoint string) (ledger.Conn, error)
}

var (
	mu         sync.RWMutex
	connectors = map[string]Connector{}
)

// Register registers a connector.
func Register(c Connector) error {
	if c.Name == "" {
		return fmt.Errorf("connregistry: connector name is required")
	}
	if c.Dial == nil {
		return fmt.Errorf("connregistry: connector %q missing Dial", c.Name)
	}
	if c.Usage == 0 {
		return fmt.Errorf("connregistry: connector %q missing Usage", c.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := connectors[c.Name]; exists {
		return fmt.Errorf("connregistry: connector %q already registered", c.Name)
	}
	connectors[c.Name] = c
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(c Connector) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

// List returns connectors matching usage, sorted by name.
func List(usage Usage) []Connector {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Connector, 0, len(connectors))
	for _, c := range connectors {
		if c.Usage.allows(usage) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns connector names matching usage, sorted.
func Names(usage Usage) []string {
	cs := List(usage)
	n := make([]string, 0, len(cs))
	for _, c := range cs {
		n = append(n, c.Name)
	}
	return n
}

// RegisterFlags registers flags for all connectors matching usage.
//
// This enables single-pass flag parsing (Go's flag package rejects unknown flags).
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, c := range List(usage) {
		if c.RegisterFlags != nil {
			c.RegisterFlags(fs)
		}
	}
}

// Dial dials with the named connector if it exists and matches usage.
func Dial(ctx context.Context, name string, endpoint string, usage Usage) (ledger.Conn, error) {
	mu.RLock()
	c, ok := connectors[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown connector %q", name)
	}
	if !c.Usage.allows(usage) {
		return nil, fmt.Errorf("connector %q not supported in this binary", name)
	}
	return c.Dial(ctx, endpoint)
}

// DialEndpoint picks a connector by the endpoint's scheme ("mem://..." dials
// the mem connector) and defaults to grpc for scheme-less endpoints.
func DialEndpoint(ctx context.Context, endpoint string, usage Usage) (ledger.Conn, error) {
	name := "grpc"
	if i := strings.Index(endpoint, "://"); i >= 0 {
		name = endpoint[:i]
	}
	return Dial(ctx, name, endpoint, usage)
}
