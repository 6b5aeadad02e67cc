package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/go-requests/pkg/errors"
)

func TestFixedLengthExactness(t *testing.T) {
	// trailing bytes past the declared length must never be delivered
	resp := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhelloEXTRA"

	for chunk := 0; chunk <= 6; chunk++ {
		for size := 1; size <= 6; size++ {
			t.Run(fmt.Sprintf("chunk=%d/size=%d", chunk, size), func(t *testing.T) {
				srv := &fakeServer{respond: static(resp), chunk: chunk}
				h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
				require.NoError(t, err)
				defer h.Close()

				assert.Equal(t, "hello", readBody(t, h, size))
				assert.Equal(t, int64(5), h.BytesRead())
				assert.False(t, h.Truncated())
				assert.Equal(t, int64(5), h.ContentLength())

				for i := 0; i < 3; i++ {
					n, err := h.Read(make([]byte, 8))
					assert.Equal(t, 0, n)
					assert.Equal(t, io.EOF, err)
				}
			})
		}
	}
}

func TestReadFillsBuffer(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\n0123456789"), chunk: 3}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 8)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "01234567", string(buf[:n]))
}

func TestChunkedDecoding(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"

	for _, chunk := range []int{0, 1, 2, 5} {
		for _, size := range []int{1, 3, 4, 9, 64} {
			srv := &fakeServer{respond: static(resp), chunk: chunk}
			h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
			require.NoError(t, err)

			assert.Equal(t, "Wikipedia", readBody(t, h, size), "chunk=%d size=%d", chunk, size)
			assert.True(t, h.readFinished)
			assert.False(t, h.Truncated())
			assert.Equal(t, int64(9), h.BytesRead())
			assert.Equal(t, int64(-1), h.ContentLength())
			h.Close()
		}
	}
}

func TestChunkedExtensionsAndTrailers(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\nTransfer-Encoding: gzip, Chunked\r\n\r\n" +
		"A;name=value\r\n0123456789\r\n" +
		"3 \r\nabc\r\n" +
		"0\r\nX-Checksum: 42\r\nX-Other:  yes \r\n\r\n"

	srv := &fakeServer{respond: static(resp), chunk: 4}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "0123456789abc", readBody(t, h, 6))
	assert.Equal(t, "42", h.Headers().Get("x-checksum"))
	assert.Equal(t, "yes", h.Headers().Get("X-OTHER"))
}

func TestMissingContentLengthIsChunked(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\n\r\n3\r\nabc\r\n0\r\n\r\n"
	srv := &fakeServer{respond: static(resp)}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "abc", readBody(t, h, 16))
}

func TestMalformedChunk(t *testing.T) {
	for _, body := range []string{
		"zz\r\nabc\r\n0\r\n\r\n",
		"3\r\nabcX\r\n0\r\n\r\n",
		"3\rX\r\nabc\r\n0\r\n\r\n",
		"11111111111111111\r\n",
		";ext\r\n",
	} {
		resp := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n" + body
		srv := &fakeServer{respond: static(resp)}
		h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
		require.NoError(t, err)

		_, err = io.ReadAll(h)
		requireType(t, err, errors.ErrorTypeMalformedChunk)
		assert.Nil(t, h.conn, "connection must be closed for %q", body)

		n, err := h.Read(make([]byte, 4))
		assert.Equal(t, 0, n)
		assert.Equal(t, io.EOF, err)
	}
}

func TestTruncatedFixedBody(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "short", readBody(t, h, 64))
	assert.True(t, h.Truncated())
	assert.Equal(t, int64(5), h.BytesRead())
}

func TestTruncatedChunkedBody(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n8\r\nabc")}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, "abc", readBody(t, h, 64))
	assert.True(t, h.Truncated())
}

func TestHeadHasNoBody(t *testing.T) {
	srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n")}
	h, err := newFakeClient(t, srv).Head(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	n, err := h.Read(make([]byte, 10))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "100", h.Headers().Get("content-length"))
	assert.True(t, strings.HasPrefix(srv.lastRequest(), "HEAD / HTTP/1.1\r\n"))
}

func TestNoBodyStatuses(t *testing.T) {
	for _, status := range []string{"204 No Content", "304 Not Modified"} {
		srv := &fakeServer{respond: static("HTTP/1.1 " + status + "\r\nContent-Length: 12\r\n\r\n")}
		h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
		require.NoError(t, err)

		assert.Equal(t, "", readBody(t, h, 8))
		h.Close()
	}
}

func TestInvalidContentLength(t *testing.T) {
	for _, cl := range []string{"abc", "-1", "1e3"} {
		srv := &fakeServer{respond: static("HTTP/1.1 200 OK\r\nContent-Length: " + cl + "\r\n\r\n")}
		h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
		assert.Nil(t, h)
		requireType(t, err, errors.ErrorTypeProtocol)
	}
}

func TestReadAll(t *testing.T) {
	body := strings.Repeat("0123456789", 100)
	srv := &fakeServer{respond: static(fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body))}
	h, err := newFakeClient(t, srv).Get(context.Background(), nil, "http://example.com/", nil, "")
	require.NoError(t, err)
	defer h.Close()

	buf, err := h.ReadAll(64)
	require.NoError(t, err)
	defer buf.Close()

	assert.True(t, buf.IsSpilled())
	assert.Equal(t, int64(len(body)), buf.Size())

	r, err := buf.Reader()
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestNilHandleRead(t *testing.T) {
	var h *Handle
	n, err := h.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, h.Close())
}
