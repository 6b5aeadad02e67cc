// Package client implements the HTTP/1.1 protocol engine: request
// serialization, connection reuse, response header parsing, body framing
// and redirects.
package client

import (
	"context"
	"log/slog"

	"github.com/WhileEndless/go-requests/pkg/errors"
	"github.com/WhileEndless/go-requests/pkg/timing"
	"github.com/WhileEndless/go-requests/pkg/transport"
	"github.com/WhileEndless/go-requests/pkg/urlparts"
)

// Client sends requests over handles it opens through a Dialer.
type Client struct {
	dialer transport.Dialer
	opts   Options
	logger *slog.Logger
}

// New returns a Client dialing real TCP/TLS connections.
func New(opts Options) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return NewWithDialer(opts, transport.New(opts.transportConfig()))
}

// NewWithDialer creates a Client with a custom dialer.
func NewWithDialer(opts Options, dialer transport.Dialer) (*Client, error) {
	if dialer == nil {
		return nil, errors.NewValidationError("client dialer is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{dialer: dialer, opts: opts, logger: logger}, nil
}

// Options returns the options the client was created with.
func (c *Client) Options() Options {
	return c.opts
}

// Do sends a request and parses the response headers. h may be nil or a
// handle returned by an earlier call; when it points at the same host, port
// and scheme its connection is reused, otherwise it is closed.
//
// headers is a raw block of "Name: value\r\n" lines. Redirects are followed
// when enabled. On failure every connection involved is closed and a nil
// handle is returned.
func (c *Client) Do(ctx context.Context, h *Handle, method, rawURL string, body []byte, headers string) (*Handle, error) {
	parts, err := urlparts.Split(rawURL)
	if err != nil {
		h.Close()
		return nil, err
	}

	for hops := 0; ; hops++ {
		h, err = c.roundTrip(ctx, h, method, parts, body, headers)
		if err != nil {
			return nil, err
		}

		location, ok := h.Header("Location")
		if !c.opts.FollowRedirects || !ok || h.statusCode < 300 || h.statusCode > 399 {
			return h, nil
		}
		if hops >= c.opts.MaxRedirects {
			h.Close()
			return nil, errors.NewRedirectError(parts.String(), hops)
		}

		next, err := urlparts.Resolve(parts, location)
		if err != nil {
			h.Close()
			return nil, err
		}
		c.logger.Debug("following redirect",
			"from", parts.String(), "to", next, "status", h.statusCode)

		if parts, err = urlparts.Split(next); err != nil {
			h.Close()
			return nil, err
		}
	}
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return c.Do(ctx, h, "GET", url, body, headers)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return c.Do(ctx, h, "POST", url, body, headers)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return c.Do(ctx, h, "PUT", url, body, headers)
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return c.Do(ctx, h, "PATCH", url, body, headers)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return c.Do(ctx, h, "DELETE", url, body, headers)
}

// Head sends a HEAD request. The returned handle never yields body bytes.
func (c *Client) Head(ctx context.Context, h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return c.Do(ctx, h, "HEAD", url, body, headers)
}

// roundTrip sends one request on h, reusing its connection when possible,
// and parses the response headers.
func (c *Client) roundTrip(ctx context.Context, h *Handle, method string, parts urlparts.Parts, body []byte, headers string) (*Handle, error) {
	req, err := BuildRequest(method, parts, body, headers, c.opts.UserAgent)
	if err != nil {
		h.Close()
		return nil, err
	}

	if h != nil && h.conn != nil && h.parts.SameIdentity(parts) {
		h.drain()
		h.reset(method)
		h.parts = parts
		h.timer = timing.NewTimer()
		if h.conn != nil && c.resend(h, req) {
			h.reused = true
		} else if err := c.open(ctx, h, req); err != nil {
			h.Close()
			return nil, err
		}
	} else {
		h.Close()
		h = newHandle(parts, c.logger)
		h.reset(method)
		h.timer = timing.NewTimer()
		if err := c.open(ctx, h, req); err != nil {
			h.Close()
			return nil, err
		}
	}

	if err := h.readHeaders(c.opts.MaxHeaderBytes); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.frame(); err != nil {
		h.Close()
		return nil, err
	}

	c.logger.Debug("response headers received",
		"host", parts.Host, "port", parts.Port, "status", h.statusCode, "reused", h.reused)
	return h, nil
}

// resend writes req on the handle's existing connection and probes it with
// a one byte peek. It reports false when the peer has gone away.
func (c *Client) resend(h *Handle, req []byte) bool {
	c.logger.Debug("reusing connection",
		"host", h.parts.Host, "port", h.parts.Port, "secured", h.parts.Secured)

	if _, err := h.conn.Send(req); err != nil {
		c.logger.Debug("send on reused connection failed", "host", h.parts.Host, "error", err)
		h.closeTransport()
		return false
	}

	var probe [1]byte
	n, err := h.conn.Receive(probe[:], true)
	if n <= 0 || err != nil {
		c.logger.Debug("keep-alive probe failed, reconnecting", "host", h.parts.Host, "error", err)
		h.closeTransport()
		return false
	}
	return true
}

// open dials a fresh connection for h and sends req on it.
func (c *Client) open(ctx context.Context, h *Handle, req []byte) error {
	c.logger.Debug("opening connection",
		"host", h.parts.Host, "port", h.parts.Port, "secured", h.parts.Secured)

	addr := transport.Address{Host: h.parts.Host, Port: h.parts.Port, Secured: h.parts.Secured}
	conn, err := c.dialer.Connect(ctx, addr, h.timer)
	if err != nil {
		return err
	}
	h.conn = conn
	h.reused = false

	if _, err := conn.Send(req); err != nil {
		return errors.NewWriteError(h.parts.Host, int(h.parts.Port), err)
	}
	return nil
}
