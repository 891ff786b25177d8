// Package network provides a probe-based connectivity check used to gate
// sync attempts.
package network

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/monetalabs/moneta/internal/application/ports"
)

const (
	// DefaultProbeTimeout bounds a single reachability probe.
	DefaultProbeTimeout = 750 * time.Millisecond

	// DefaultCacheTTL is how long a probe result is trusted before the next
	// Connected call probes again.
	DefaultCacheTTL = 10 * time.Second
)

// Monitor reports whether the sync target is reachable. Results are cached
// so repeated checks inside one sync cycle cost a single probe.
type Monitor struct {
	address      string
	probeTimeout time.Duration
	cacheTTL     time.Duration
	dial         func(network, address string, timeout time.Duration) (net.Conn, error)

	mu        sync.Mutex
	lastProbe time.Time
	connected bool
}

var _ ports.ConnectivityPort = (*Monitor)(nil)

// NewMonitor creates a monitor probing the host of the given base URL. The
// port defaults to 443 (80 for plain http) when the URL carries none.
func NewMonitor(baseURL string) *Monitor {
	return &Monitor{
		address:      probeAddress(baseURL),
		probeTimeout: DefaultProbeTimeout,
		cacheTTL:     DefaultCacheTTL,
		dial:         net.DialTimeout,
	}
}

// Connected reports the cached reachability of the sync target, probing
// again once the cached answer is older than the TTL. Best effort: a stale
// answer near a network transition is acceptable.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastProbe) < m.cacheTTL {
		return m.connected
	}

	conn, err := m.dial("tcp", m.address, m.probeTimeout)
	if err == nil {
		conn.Close()
	}

	m.lastProbe = time.Now()
	m.connected = err == nil
	return m.connected
}

// Invalidate drops the cached answer so the next Connected call probes.
func (m *Monitor) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProbe = time.Time{}
}

// probeAddress derives a host:port dial target from a base URL.
func probeAddress(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "api.moneta.cloud:443"
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}
