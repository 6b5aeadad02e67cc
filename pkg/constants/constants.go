// Package constants defines magic numbers and default values used throughout go-requests
package constants

import "time"

// Connection timeouts
const (
	DefaultConnTimeout  = 10 * time.Second
	DefaultReadTimeout  = 0 // unbounded unless the caller sets one
	DefaultWriteTimeout = 0
)

// Default ports per scheme
const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
)

// Parser limits
const (
	// ParserBufferSize is the block size used when reading response headers
	// and chunk framing from the transport.
	ParserBufferSize = 1024
	// DrainBufferSize is the scratch size used to discard an unread body
	// before a connection is reused.
	DrainBufferSize = 2048
	// MaxHostLength is the longest host name accepted by the URL splitter.
	MaxHostLength = 253
	// MaxChunkSizeDigits bounds the hex digits of a chunk size (64 bits).
	MaxChunkSizeDigits = 16
	// DefaultMaxHeaderBytes caps a whole response header block.
	DefaultMaxHeaderBytes = 64 * 1024
	// MaxTrailerLineBytes caps a single trailer line after the last chunk.
	MaxTrailerLineBytes = 8 * 1024
)

// Redirects
const (
	DefaultMaxRedirects = 10
)

// Default request headers
const (
	DefaultContentType    = "application/x-www-form-urlencoded"
	DefaultAccept         = "*/*"
	DefaultUserAgent      = "go-requests/1.0"
	DefaultConnection     = "keep-alive"
	DefaultAcceptEncoding = "identity"
)

// Buffer limits
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024 // 4MB
)
