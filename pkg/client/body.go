package client

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/errors"
)

type chunkState uint8

const (
	chunkSize chunkState = iota
	chunkExtension
	chunkSizeLF
	chunkData
	chunkDataCR
	chunkDataLF
	chunkTrailer
)

// chunkDecoder is the framing state kept between Read calls.
type chunkDecoder struct {
	state   chunkState
	size    int64
	digits  int
	extLen  int
	trailer []byte
}

// frame picks the body framing from the parsed response.
func (h *Handle) frame() error {
	h.totalBytes = -1
	h.bytesRead = 0

	if h.method == "HEAD" || (h.statusCode >= 100 && h.statusCode < 200) ||
		h.statusCode == 204 || h.statusCode == 304 {
		h.readFinished = true
		return nil
	}

	if te, ok := h.store.Lookup("Transfer-Encoding"); ok &&
		httpguts.HeaderValuesContainsToken([]string{te}, "chunked") {
		h.chunked = true
		return nil
	}

	cl, ok := h.store.Lookup("Content-Length")
	if !ok {
		// without a declared length the body is decoded as chunked
		h.chunked = true
		return nil
	}
	length, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil {
		return errors.NewProtocolError("invalid content-length", err)
	}
	if length < 0 {
		return errors.NewProtocolError("negative content-length not allowed", nil)
	}
	h.totalBytes = length
	h.readFinished = length == 0
	return nil
}

// Read reads body bytes into p. It fills p as far as the body allows and
// returns io.EOF once the body is exhausted, without blocking again.
//
// A transport failure in the middle of the body ends it early and sets
// Truncated. Broken chunk framing closes the connection and returns a
// malformed chunk error.
func (h *Handle) Read(p []byte) (int, error) {
	if h == nil || h.readFinished {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	var n int
	var err error
	if h.chunked {
		n, err = h.readChunked(p)
	} else {
		n = h.readFixed(p)
	}
	h.bytesRead += int64(n)

	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (h *Handle) readFixed(p []byte) int {
	filled := 0
	for filled < len(p) {
		remaining := h.totalBytes - h.bytesRead - int64(filled)
		if remaining <= 0 {
			break
		}
		want := min(int64(len(p)-filled), remaining)
		n, err := h.receive(p[filled : filled+int(want)])
		filled += max(n, 0)
		if n <= 0 || err != nil {
			if h.bytesRead+int64(filled) < h.totalBytes {
				h.truncate(err)
			}
			break
		}
	}
	if h.bytesRead+int64(filled) >= h.totalBytes {
		h.readFinished = true
	}
	return filled
}

func (h *Handle) readChunked(p []byte) (int, error) {
	filled := 0
	for filled < len(p) && !h.readFinished {
		if h.chunk.state == chunkData {
			want := min(int64(len(p)-filled), h.totalBytes)
			n, err := h.receive(p[filled : filled+int(want)])
			if n > 0 {
				filled += n
				h.totalBytes -= int64(n)
				if h.totalBytes == 0 {
					h.chunk.state = chunkDataCR
				}
			}
			if n <= 0 || err != nil {
				h.truncate(err)
			}
			continue
		}

		n, err := h.receive(h.scratch[:1])
		if n <= 0 {
			h.truncate(err)
			break
		}
		if err := h.chunkByte(h.scratch[0]); err != nil {
			h.readFinished = true
			h.closeTransport()
			return filled, err
		}
	}
	return filled, nil
}

// chunkByte advances the framing state by one byte outside chunk data.
func (h *Handle) chunkByte(c byte) error {
	d := &h.chunk
	switch d.state {
	case chunkSize:
		switch {
		case isHex(c):
			if d.digits == constants.MaxChunkSizeDigits || d.size > (1<<59)-1 {
				return errors.NewMalformedChunkError("chunk size too large")
			}
			d.size = d.size<<4 | int64(unhex(c))
			d.digits++
		case d.digits == 0:
			return errors.NewMalformedChunkError("invalid chunk size byte " + strconv.QuoteRune(rune(c)))
		case c == ';' || c == ' ' || c == '\t':
			d.state = chunkExtension
		case c == '\r':
			d.state = chunkSizeLF
		case c == '\n':
			h.endChunkSize()
		default:
			return errors.NewMalformedChunkError("invalid chunk size byte " + strconv.QuoteRune(rune(c)))
		}
	case chunkExtension:
		if c == '\n' {
			h.endChunkSize()
			return nil
		}
		d.extLen++
		if d.extLen > constants.MaxTrailerLineBytes {
			return errors.NewMalformedChunkError("chunk extension too long")
		}
	case chunkSizeLF:
		if c != '\n' {
			return errors.NewMalformedChunkError("missing LF after chunk size")
		}
		h.endChunkSize()
	case chunkDataCR:
		switch c {
		case '\r':
			d.state = chunkDataLF
		case '\n':
			h.chunk = chunkDecoder{}
		default:
			return errors.NewMalformedChunkError("missing CRLF after chunk data")
		}
	case chunkDataLF:
		if c != '\n' {
			return errors.NewMalformedChunkError("missing LF after chunk data")
		}
		h.chunk = chunkDecoder{}
	case chunkTrailer:
		if c != '\n' {
			if len(d.trailer) >= constants.MaxTrailerLineBytes {
				return errors.NewMalformedChunkError("trailer line too long")
			}
			d.trailer = append(d.trailer, c)
			return nil
		}
		line := strings.TrimRight(string(d.trailer), "\r")
		d.trailer = d.trailer[:0]
		if line == "" {
			h.readFinished = true
			return nil
		}
		if key, value, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(key) != "" {
			h.store.Set(strings.TrimSpace(key), strings.TrimSpace(value))
		}
	}
	return nil
}

func (h *Handle) endChunkSize() {
	if h.chunk.size == 0 {
		h.chunk = chunkDecoder{state: chunkTrailer}
		return
	}
	h.totalBytes = h.chunk.size
	h.chunk.state = chunkData
}

// truncate ends the body after a transport failure.
func (h *Handle) truncate(err error) {
	h.readFinished = true
	h.truncated = true
	h.logger.Debug("response body truncated",
		"host", h.parts.Host, "read", h.bytesRead, "error", err)
	h.closeTransport()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
