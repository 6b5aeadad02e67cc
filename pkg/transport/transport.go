// Package transport provides the blocking TCP/TLS connections the protocol
// engine talks through.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/errors"
	"github.com/WhileEndless/go-requests/pkg/timing"
	"github.com/WhileEndless/go-requests/pkg/tlsconfig"
)

// Address identifies the peer a connection is bound to.
type Address struct {
	Host    string
	Port    uint16
	Secured bool
}

// Conn is an open, blocking byte stream to one peer.
type Conn interface {
	// Send writes p and returns the number of bytes written.
	Send(p []byte) (int, error)
	// Receive reads into p. With peek set the bytes are returned without
	// being consumed, so the next Receive sees them again.
	Receive(p []byte, peek bool) (int, error)
	// Close releases the connection.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Connect(ctx context.Context, addr Address, timer *timing.Timer) (Conn, error)
}

// Config holds transport configuration.
type Config struct {
	ConnTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          tlsconfig.Config
	Logger       *slog.Logger
}

// NetDialer dials real TCP connections, optionally wrapped in TLS.
type NetDialer struct {
	config   Config
	resolver *net.Resolver
	logger   *slog.Logger
}

// New creates a NetDialer using the system resolver.
func New(config Config) *NetDialer {
	return NewWithResolver(config, net.DefaultResolver)
}

// NewWithResolver creates a NetDialer with a custom resolver.
func NewWithResolver(config Config, resolver *net.Resolver) *NetDialer {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = constants.DefaultConnTimeout
	}
	return &NetDialer{
		config:   config,
		resolver: resolver,
		logger:   logger,
	}
}

// Connect resolves addr, races every resolved address and performs the TLS
// handshake when addr is secured.
func (d *NetDialer) Connect(ctx context.Context, addr Address, timer *timing.Timer) (Conn, error) {
	if addr.Host == "" {
		return nil, errors.NewValidationError("host cannot be empty")
	}
	if addr.Port == 0 {
		return nil, errors.NewValidationError("port cannot be zero")
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.ConnTimeout)
	defer cancel()

	ips, err := d.resolve(ctx, addr, timer)
	if err != nil {
		return nil, err
	}

	timer.StartTCP()
	conn, err := race(ctx, ips, addr.Port)
	timer.EndTCP()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.NewTimeoutError("connect", d.config.ConnTimeout)
		}
		return nil, errors.NewConnectionError(addr.Host, int(addr.Port), err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	d.logger.Debug("transport connected",
		"host", addr.Host, "port", addr.Port, "remote", conn.RemoteAddr().String())

	if addr.Secured {
		conn, err = d.upgradeTLS(ctx, conn, addr, timer)
		if err != nil {
			return nil, err
		}
	}

	return newStreamConn(conn, d.config.ReadTimeout, d.config.WriteTimeout), nil
}

func (d *NetDialer) resolve(ctx context.Context, addr Address, timer *timing.Timer) ([]net.IP, error) {
	host := strings.TrimSuffix(strings.TrimPrefix(addr.Host, "["), "]")
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	timer.StartDNS()
	defer timer.EndDNS()

	addrs, err := d.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.NewDNSError(addr.Host, err)
	}
	if len(addrs) == 0 {
		return nil, errors.NewDNSError(addr.Host, errors.NewValidationError("no IP addresses found"))
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

type dialResult struct {
	conn net.Conn
	err  error
}

// race dials every ip at once and returns the first connection that
// completes its handshake. The losers are closed.
func race(ctx context.Context, ips []net.IP, port uint16) (net.Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan dialResult, len(ips))
	var dialer net.Dialer
	for _, ip := range ips {
		go func(ip net.IP) {
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(int(port))))
			results <- dialResult{conn, err}
		}(ip)
	}

	var winner net.Conn
	var firstErr error
	for range ips {
		r := <-results
		switch {
		case r.err != nil:
			if firstErr == nil {
				firstErr = r.err
			}
		case winner == nil:
			winner = r.conn
			cancel()
		default:
			r.conn.Close()
		}
	}

	if winner == nil {
		return nil, firstErr
	}
	return winner, nil
}

func (d *NetDialer) upgradeTLS(ctx context.Context, conn net.Conn, addr Address, timer *timing.Timer) (net.Conn, error) {
	timer.StartTLS()
	defer timer.EndTLS()

	cfg := d.config.TLS
	if cfg.ServerName == "" {
		cfg.ServerName = strings.TrimSuffix(strings.TrimPrefix(addr.Host, "["), "]")
	}
	tlsCfg, err := tlsconfig.Build(cfg)
	if err != nil {
		conn.Close()
		return nil, errors.NewTLSError(addr.Host, int(addr.Port), err)
	}

	tlsConn := tls.Client(conn, tlsCfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, errors.NewTLSError(addr.Host, int(addr.Port), err)
	}

	state := tlsConn.ConnectionState()
	d.logger.Debug("tls established",
		"host", addr.Host, "version", tlsconfig.GetVersionName(state.Version),
		"cipher", tls.CipherSuiteName(state.CipherSuite))

	return tlsConn, nil
}

// streamConn adapts a net.Conn to Conn. Reads go through a bufio.Reader so
// a peek leaves the bytes in place.
type streamConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newStreamConn(conn net.Conn, readTimeout, writeTimeout time.Duration) *streamConn {
	return &streamConn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, constants.ParserBufferSize),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Send writes all of p, looping over partial writes.
func (c *streamConn) Send(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, errors.NewIOError("setting write deadline", err)
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	written := 0
	for written < len(p) {
		n, err := c.conn.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *streamConn) Receive(p []byte, peek bool) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.readTimeout > 0 && c.reader.Buffered() == 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, errors.NewIOError("setting read deadline", err)
		}
	}

	if !peek {
		return c.reader.Read(p)
	}

	// Peek(1) blocks until at least one byte is buffered, then only what is
	// already buffered is handed out.
	if _, err := c.reader.Peek(1); err != nil {
		return 0, err
	}
	b, _ := c.reader.Peek(min(len(p), c.reader.Buffered()))
	return copy(p, b), nil
}

func (c *streamConn) Close() error {
	return c.conn.Close()
}
