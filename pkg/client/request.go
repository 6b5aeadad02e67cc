package client

import (
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"

	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/errors"
	"github.com/WhileEndless/go-requests/pkg/urlparts"
)

const crlf = "\r\n"

// BuildRequest serializes an HTTP/1.1 request for parts.
//
// The request line is followed by Host and Content-Length, then the default
// Content-Type, Accept, User-Agent, Connection and Accept-Encoding headers,
// each only when headers has no line with that field name. headers is a raw
// block of "Name: value\r\n" lines appended as is; a missing final CRLF is
// added. The body follows the blank line.
func BuildRequest(method string, parts urlparts.Parts, body []byte, headers, userAgent string) ([]byte, error) {
	if method == "" || !httpguts.ValidHeaderFieldName(method) {
		return nil, errors.NewValidationError("invalid request method: " + strconv.Quote(method))
	}
	if parts.Host == "" {
		return nil, errors.NewValidationError("request host cannot be empty")
	}
	path := parts.Path
	if path == "" {
		path = "/"
	}
	if strings.ContainsAny(path, " \r\n") {
		return nil, errors.NewValidationError("request path contains whitespace")
	}
	if userAgent == "" {
		userAgent = constants.DefaultUserAgent
	}

	names := headerNames(headers)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(method)
	buf.WriteString(" ")
	buf.WriteString(path)
	buf.WriteString(" HTTP/1.1\r\n")

	buf.WriteString("Host: ")
	buf.WriteString(parts.HostPort())
	buf.WriteString(crlf)

	buf.WriteString("Content-Length: ")
	buf.B = strconv.AppendInt(buf.B, int64(len(body)), 10)
	buf.WriteString(crlf)

	defaults := [...]struct{ name, value string }{
		{"Content-Type", constants.DefaultContentType},
		{"Accept", constants.DefaultAccept},
		{"User-Agent", userAgent},
		{"Connection", constants.DefaultConnection},
		{"Accept-Encoding", constants.DefaultAcceptEncoding},
	}
	for _, d := range defaults {
		if names[strings.ToLower(d.name)] {
			continue
		}
		buf.WriteString(d.name)
		buf.WriteString(": ")
		buf.WriteString(d.value)
		buf.WriteString(crlf)
	}

	if headers != "" {
		buf.WriteString(headers)
		if !strings.HasSuffix(headers, crlf) {
			buf.WriteString(crlf)
		}
	}
	buf.WriteString(crlf)
	buf.Write(body)

	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

// headerNames returns the lower-cased field names of a raw header block.
func headerNames(block string) map[string]bool {
	names := make(map[string]bool)
	for block != "" {
		var line string
		line, block, _ = strings.Cut(block, "\n")
		name, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		names[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return names
}
