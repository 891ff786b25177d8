package network

import (
	"errors"
	"net"
	"testing"
	"time"
)

type fakeConn struct {
	net.Conn
}

func (fakeConn) Close() error { return nil }

func TestMonitor_Connected(t *testing.T) {
	probes := 0
	m := NewMonitor("https://api.moneta.cloud")
	m.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		probes++
		return fakeConn{}, nil
	}

	if !m.Connected() {
		t.Error("Connected() = false, want true")
	}
	if !m.Connected() {
		t.Error("second Connected() = false, want true")
	}
	if probes != 1 {
		t.Errorf("probes = %d, want 1 (cached)", probes)
	}
}

func TestMonitor_Offline(t *testing.T) {
	m := NewMonitor("https://api.moneta.cloud")
	m.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("no route to host")
	}

	if m.Connected() {
		t.Error("Connected() = true, want false")
	}
}

func TestMonitor_InvalidateReprobes(t *testing.T) {
	probes := 0
	m := NewMonitor("https://api.moneta.cloud")
	m.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		probes++
		if probes == 1 {
			return nil, errors.New("down")
		}
		return fakeConn{}, nil
	}

	if m.Connected() {
		t.Error("first Connected() = true, want false")
	}
	m.Invalidate()
	if !m.Connected() {
		t.Error("Connected() after Invalidate = false, want true")
	}
	if probes != 2 {
		t.Errorf("probes = %d, want 2", probes)
	}
}

func TestProbeAddress(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"https default port", "https://api.moneta.cloud", "api.moneta.cloud:443"},
		{"http default port", "http://localhost", "localhost:80"},
		{"explicit port", "http://localhost:8080", "localhost:8080"},
		{"garbage falls back", "://", "api.moneta.cloud:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := probeAddress(tt.baseURL); got != tt.want {
				t.Errorf("probeAddress(%q) = %q, want %q", tt.baseURL, got, tt.want)
			}
		})
	}
}
