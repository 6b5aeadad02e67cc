package client

import (
	"io"
	"log/slog"

	"github.com/WhileEndless/go-requests/pkg/buffer"
	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/headers"
	"github.com/WhileEndless/go-requests/pkg/timing"
	"github.com/WhileEndless/go-requests/pkg/transport"
	"github.com/WhileEndless/go-requests/pkg/urlparts"
)

// Handle is one connection to a peer together with the state of the
// response currently being read from it. A Handle returned by Client.Do can
// be passed back to Do to reuse the connection. It must not be used from
// more than one goroutine at a time.
type Handle struct {
	conn   transport.Conn
	parts  urlparts.Parts
	logger *slog.Logger
	timer  *timing.Timer
	reused bool

	method     string
	store      *headers.Store
	statusCode int
	statusLine string
	proto      string

	// residue holds body bytes read along with the header block.
	residue []byte
	scratch [constants.ParserBufferSize]byte

	// totalBytes is the declared length, or what is left of the current
	// chunk while chunked.
	totalBytes   int64
	bytesRead    int64
	chunked      bool
	readFinished bool
	truncated    bool
	chunk        chunkDecoder
}

func newHandle(parts urlparts.Parts, logger *slog.Logger) *Handle {
	return &Handle{
		parts:  parts,
		logger: logger,
		store:  headers.New(),
	}
}

// URL returns the URL of the last request sent on the handle.
func (h *Handle) URL() string {
	return h.parts.String()
}

// Header returns the value of the response header name, ignoring case.
// Trailers of a chunked body are visible once the body has been read.
func (h *Handle) Header(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	return h.store.Lookup(name)
}

// Headers exposes the response header store.
func (h *Handle) Headers() *headers.Store {
	return h.store
}

// StatusCode returns the status of the last response, 0 before one was parsed.
func (h *Handle) StatusCode() int {
	if h == nil {
		return 0
	}
	return h.statusCode
}

// StatusLine returns the full status line, e.g. "HTTP/1.1 200 OK".
func (h *Handle) StatusLine() string {
	return h.statusLine
}

// Proto returns the protocol version of the status line.
func (h *Handle) Proto() string {
	return h.proto
}

// BytesRead returns how many body bytes have been delivered so far.
func (h *Handle) BytesRead() int64 {
	return h.bytesRead
}

// ContentLength returns the declared body length, or -1 for chunked bodies.
func (h *Handle) ContentLength() int64 {
	if h.chunked {
		return -1
	}
	return h.totalBytes
}

// Truncated reports whether the body ended early because the transport
// failed or the peer closed the connection.
func (h *Handle) Truncated() bool {
	return h.truncated
}

// Reused reports whether the last response arrived on a reused connection.
func (h *Handle) Reused() bool {
	return h.reused
}

// Metrics returns the timings of the last request.
func (h *Handle) Metrics() timing.Metrics {
	return h.timer.GetMetrics()
}

// WriteHeaders writes the status line and the headers to w, one per line.
func (h *Handle) WriteHeaders(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, h.statusLine+"\n")
	if err != nil {
		return int64(n), err
	}
	m, err := h.store.WriteTo(w)
	return int64(n) + m, err
}

// ReadAll reads the rest of the body into a Buffer that keeps up to
// memLimit bytes in memory and spills the rest to a temporary file. The
// caller must Close the returned Buffer.
func (h *Handle) ReadAll(memLimit int64) (*buffer.Buffer, error) {
	buf := buffer.New(memLimit)
	if _, err := io.Copy(buf, h); err != nil {
		buf.Close()
		return nil, err
	}
	return buf, nil
}

// Close closes the connection. Close is idempotent.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.store.Reset()
	h.residue = nil
	h.readFinished = true
	return h.closeTransport()
}

func (h *Handle) closeTransport() error {
	if h.conn == nil {
		return nil
	}
	h.logger.Debug("closing connection",
		"host", h.parts.Host, "port", h.parts.Port, "secured", h.parts.Secured)
	err := h.conn.Close()
	h.conn = nil
	return err
}

// reset prepares the handle for the next response on the same connection.
func (h *Handle) reset(method string) {
	h.method = method
	h.store.Reset()
	h.statusCode = 0
	h.statusLine = ""
	h.proto = ""
	h.residue = h.residue[:0]
	h.totalBytes = -1
	h.bytesRead = 0
	h.chunked = false
	h.readFinished = false
	h.truncated = false
	h.chunk = chunkDecoder{}
}

// drain discards whatever is left of the current body.
func (h *Handle) drain() {
	var buf [constants.DrainBufferSize]byte
	for {
		n, err := h.Read(buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// receive reads from the residue first and from the transport once the
// residue is empty.
func (h *Handle) receive(p []byte) (int, error) {
	if len(h.residue) > 0 {
		n := copy(p, h.residue)
		h.residue = h.residue[n:]
		return n, nil
	}
	if h.conn == nil {
		return 0, io.ErrClosedPipe
	}
	return h.conn.Receive(p, false)
}
