package requests

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenTCP(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPerm(err) {
			t.Skip("network sockets not permitted in sandbox")
		}
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func isPerm(err error) bool {
	if op, ok := err.(*net.OpError); ok {
		if se, ok := op.Err.(*os.SyscallError); ok && se.Err == syscall.EPERM {
			return true
		}
	}
	return strings.Contains(err.Error(), "operation not permitted")
}

func serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			br := bufio.NewReader(conn)
			for {
				req, err := http.ReadRequest(br)
				if err != nil {
					return
				}
				body, _ := io.ReadAll(req.Body)
				payload := req.Method + ":" + string(body)
				fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Length: %d\r\nX-Method: %s\r\n\r\n%s",
					len(payload), req.Method, payload)
			}
		}(conn)
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()
	go serve(ln)

	require.NoError(t, Init())
	require.NoError(t, Init())
	defer Destroy()

	url := "http://" + ln.Addr().String() + "/"

	h, err := Post(nil, url, []byte("a=1"), "")
	require.NoError(t, err)
	assert.Equal(t, 200, StatusCode(h))
	assert.Equal(t, "POST", HeaderValue(h, "x-method"))

	buf := make([]byte, 64)
	n := ReadBody(h, buf)
	assert.Equal(t, "POST:a=1", string(buf[:n]))
	assert.Equal(t, 0, ReadBody(h, buf))

	for _, call := range []struct {
		method string
		fn     func(*Handle, string, []byte, string) (*Handle, error)
	}{
		{"GET", Get}, {"PUT", Put}, {"PATCH", Patch}, {"DELETE", Delete},
	} {
		h, err = call.fn(h, url, nil, "")
		require.NoError(t, err, call.method)
		assert.True(t, h.Reused(), call.method)
		assert.Equal(t, call.method, HeaderValue(h, "X-Method"))
	}

	h, err = Head(h, url, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, ReadBody(h, buf))

	require.NoError(t, CloseConnection(&h))
	assert.Nil(t, h)
	require.NoError(t, CloseConnection(&h))
}

func TestInvalidURLReturnsNil(t *testing.T) {
	h, err := Get(nil, "example.com/no-scheme", nil, "")
	assert.Nil(t, h)
	assert.Equal(t, string(ErrorTypeInvalidURL), GetErrorType(err))
}

func TestInitWithOptionsValidates(t *testing.T) {
	opts := DefaultOptions()
	opts.UserAgent = ""
	err := InitWithOptions(opts)
	assert.Equal(t, string(ErrorTypeValidation), GetErrorType(err))
}

func TestParseForm(t *testing.T) {
	s, err := ParseForm("user=jane+doe&lang=go%21")
	require.NoError(t, err)
	assert.Equal(t, "jane doe", s.Get("USER"))
	assert.Equal(t, "go!", s.Get("lang"))
}
