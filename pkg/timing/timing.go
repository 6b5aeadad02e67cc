// Package timing provides performance measurement utilities for HTTP requests.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures detailed timing information for a request.
type Metrics struct {
	// DNSLookup is the time spent performing DNS resolution
	DNSLookup time.Duration `json:"dns_lookup"`

	// TCPConnect is the time spent racing the resolved addresses until one
	// completed its handshake
	TCPConnect time.Duration `json:"tcp_connect"`

	// TLSHandshake is the time spent performing TLS handshake (0 for HTTP)
	TLSHandshake time.Duration `json:"tls_handshake"`

	// TTFB is the time between the end of the request write and the first
	// response byte
	TTFB time.Duration `json:"ttfb"`

	// Headers is the time spent reading the response header block
	Headers time.Duration `json:"headers"`

	// TotalTime is the time from request start until headers were parsed
	TotalTime time.Duration `json:"total_time"`
}

// Timer helps measure request timings. A nil *Timer is valid and records
// nothing, so transports can be driven without one.
type Timer struct {
	start       time.Time
	dnsStart    time.Time
	dnsEnd      time.Time
	tcpStart    time.Time
	tcpEnd      time.Time
	tlsStart    time.Time
	tlsEnd      time.Time
	ttfbStart   time.Time
	ttfbEnd     time.Time
	headersDone time.Time
}

// NewTimer creates a new timing measurement session.
func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

// StartDNS marks the beginning of DNS resolution.
func (t *Timer) StartDNS() {
	if t != nil {
		t.dnsStart = time.Now()
	}
}

// EndDNS marks the end of DNS resolution.
func (t *Timer) EndDNS() {
	if t != nil {
		t.dnsEnd = time.Now()
	}
}

// StartTCP marks the beginning of TCP connection.
func (t *Timer) StartTCP() {
	if t != nil {
		t.tcpStart = time.Now()
	}
}

// EndTCP marks the end of TCP connection.
func (t *Timer) EndTCP() {
	if t != nil {
		t.tcpEnd = time.Now()
	}
}

// StartTLS marks the beginning of TLS handshake.
func (t *Timer) StartTLS() {
	if t != nil {
		t.tlsStart = time.Now()
	}
}

// EndTLS marks the end of TLS handshake.
func (t *Timer) EndTLS() {
	if t != nil {
		t.tlsEnd = time.Now()
	}
}

// StartTTFB marks when we start waiting for the first response byte.
func (t *Timer) StartTTFB() {
	if t != nil {
		t.ttfbStart = time.Now()
	}
}

// EndTTFB marks when we receive the first response byte. Only the first
// call after StartTTFB counts.
func (t *Timer) EndTTFB() {
	if t != nil && t.ttfbEnd.IsZero() {
		t.ttfbEnd = time.Now()
	}
}

// EndHeaders marks the end of the response header block.
func (t *Timer) EndHeaders() {
	if t != nil {
		t.headersDone = time.Now()
	}
}

func span(from, to time.Time) time.Duration {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return to.Sub(from)
}

// GetMetrics returns the calculated timing metrics.
func (t *Timer) GetMetrics() Metrics {
	if t == nil {
		return Metrics{}
	}

	end := t.headersDone
	if end.IsZero() {
		end = time.Now()
	}

	return Metrics{
		DNSLookup:    span(t.dnsStart, t.dnsEnd),
		TCPConnect:   span(t.tcpStart, t.tcpEnd),
		TLSHandshake: span(t.tlsStart, t.tlsEnd),
		TTFB:         span(t.ttfbStart, t.ttfbEnd),
		Headers:      span(t.ttfbEnd, t.headersDone),
		TotalTime:    end.Sub(t.start),
	}
}

// GetConnectionTime returns the total connection establishment time (DNS + TCP + TLS).
func (m Metrics) GetConnectionTime() time.Duration {
	return m.DNSLookup + m.TCPConnect + m.TLSHandshake
}

// String provides a human-readable representation of the metrics.
func (m Metrics) String() string {
	return fmt.Sprintf("DNSLookup: %v, TCPConnect: %v, TLSHandshake: %v, TTFB: %v, Headers: %v, TotalTime: %v",
		m.DNSLookup, m.TCPConnect, m.TLSHandshake, m.TTFB, m.Headers, m.TotalTime)
}
