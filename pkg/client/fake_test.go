package client

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-requests/pkg/errors"
	"github.com/WhileEndless/go-requests/pkg/timing"
	"github.com/WhileEndless/go-requests/pkg/transport"
)

// fakeServer answers every request sent on its connections with the bytes
// returned by respond.
type fakeServer struct {
	mu sync.Mutex

	respond func(req string) string
	// chunk caps the bytes handed out by one Receive; 0 means no cap.
	chunk int
	// oneShot makes every connection go silent after its first response,
	// like a peer that closed an idle keep-alive connection.
	oneShot bool
	dialErr error

	opens    int
	addrs    []transport.Address
	requests []string
}

func (s *fakeServer) Connect(_ context.Context, addr transport.Address, timer *timing.Timer) (transport.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialErr != nil {
		return nil, s.dialErr
	}
	timer.StartTCP()
	timer.EndTCP()
	s.opens++
	s.addrs = append(s.addrs, addr)
	return &fakeConn{srv: s}, nil
}

func (s *fakeServer) lastRequest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[len(s.requests)-1]
}

type fakeConn struct {
	srv    *fakeServer
	in     bytes.Buffer
	served int
	closed bool
}

func (c *fakeConn) Send(p []byte) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	c.srv.mu.Lock()
	c.srv.requests = append(c.srv.requests, string(p))
	c.srv.mu.Unlock()

	if c.srv.oneShot && c.served > 0 {
		return len(p), nil
	}
	c.served++
	c.in.WriteString(c.srv.respond(string(p)))
	return len(p), nil
}

func (c *fakeConn) Receive(p []byte, peek bool) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	if c.in.Len() == 0 {
		return 0, io.EOF
	}
	n := min(len(p), c.in.Len())
	if c.srv.chunk > 0 {
		n = min(n, c.srv.chunk)
	}
	if peek {
		return copy(p, c.in.Bytes()[:n]), nil
	}
	return c.in.Read(p[:n])
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// static returns a responder that always answers with resp.
func static(resp string) func(string) string {
	return func(string) string { return resp }
}

func newFakeClient(t *testing.T, srv *fakeServer, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	c, err := NewWithDialer(opts, srv)
	require.NoError(t, err)
	return c
}

// readBody reads h to EOF using reads of at most size bytes.
func readBody(t *testing.T, h *Handle, size int) string {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, size)
	for i := 0; i < 1<<20; i++ {
		n, err := h.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			return out.String()
		}
		require.NoError(t, err)
	}
	t.Fatal("body did not terminate")
	return ""
}

func requireType(t *testing.T, err error, want errors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, errors.GetErrorType(err), "error: %v", err)
}
