package client

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-requests/pkg/errors"
)

func TestStatusLineExtraction(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")}
	c := newFakeClient(t, srv)

	h, err := c.Get(context.Background(), nil, "http://example.com/missing", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 404, h.StatusCode())
	assert.Equal(t, "HTTP/1.1 404 Not Found", h.StatusLine())
	assert.Equal(t, "HTTP/1.1", h.Proto())
}

func TestHeaderParsingAcrossBlockBoundaries(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\n" +
		"Content-Length: 42\r\n" +
		"X-Empty:\r\n" +
		"X-Spaced :   padded value  \r\n" +
		"X-Colon: a:b:c\r\n" +
		"\r\n" +
		strings.Repeat("z", 42)

	for _, chunk := range []int{1, 2, 3, 7, 16, 0} {
		srv := &fakeServer{respond: static(resp), chunk: chunk}
		c := newFakeClient(t, srv)

		h, err := c.Get(context.Background(), nil, "http://example.com/", nil, "")
		require.NoError(t, err, "chunk %d", chunk)

		for _, k := range []string{"content-length", "CONTENT-LENGTH", "Content-Length"} {
			v, ok := h.Header(k)
			assert.True(t, ok)
			assert.Equal(t, "42", v, "chunk %d key %s", chunk, k)
		}
		assert.Equal(t, "padded value", h.Headers().Get("x-spaced"))
		assert.Equal(t, "a:b:c", h.Headers().Get("X-Colon"))
		v, ok := h.Header("x-empty")
		assert.True(t, ok)
		assert.Equal(t, "", v)

		assert.Equal(t, strings.Repeat("z", 42), readBody(t, h, 5), "chunk %d", chunk)
		h.Close()
	}
}

func TestHeaderLastWriteWins(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nX-A: 1\r\nx-a: 2\r\nContent-Length: 0\r\n\r\n")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "2", h.Headers().Get("X-A"))
	assert.Equal(t, 2, h.Headers().Len())
}

func TestHeaderFolding(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nX-Long: first\r\n\tsecond\r\nContent-Length: 0\r\n\r\n")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "first second", h.Headers().Get("x-long"))
}

func TestBareLFLineEndings(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\nContent-Length: 2\n\nok")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "ok", readBody(t, h, 16))
}

func TestIncompleteHeaders(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	assert.Nil(t, h)
	requireType(t, err, errors.ErrorTypeIncompleteHeaders)
}

func TestEmptyResponse(t *testing.T) {
	srv := &fakeServer{respond: static("")}
	_, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	requireType(t, err, errors.ErrorTypeIncompleteHeaders)
}

func TestMalformedStatusLine(t *testing.T) {
	for _, resp := range []string{
		"SMTP ready\r\n\r\n",
		"HTTP/1.1 20 OK\r\n\r\n",
		"HTTP/1.1 abc OK\r\n\r\n",
		"HTTP/1.1 2000 OK\r\n\r\n",
	} {
		srv := &fakeServer{respond: static(resp)}
		_, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
		requireType(t, err, errors.ErrorTypeProtocol)
	}
}

func TestHeaderBlockLimit(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\nX-Big: " + strings.Repeat("a", 8192) + "\r\n\r\n"
	srv := &fakeServer{respond: static(resp)}
	c := newFakeClient(t, srv, func(o *Options) { o.MaxHeaderBytes = 4096 })

	_, err := c.Get(context.Background(), nil, "http://example.com/", nil, "")
	requireType(t, err, errors.ErrorTypeOutOfMemory)
}

func TestWriteHeaders(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nServer: fake\r\nContent-Length: 0\r\n\r\n")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	var out bytes.Buffer
	_, err = h.WriteHeaders(&out)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\nServer: fake\nContent-Length: 0\n", out.String())
}
