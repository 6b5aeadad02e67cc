// Package requests is a small blocking HTTP/1.1 client over plain TCP or
// TLS. It reuses a connection across requests to the same peer, streams
// fixed-length and chunked bodies, and follows redirects.
//
// A request returns a *Handle; read the body with Handle.Read and pass the
// handle to the next request to keep its connection alive:
//
//	h, err := requests.Get(nil, "https://example.com/", nil, "")
//	if err != nil {
//		return err
//	}
//	defer requests.CloseConnection(&h)
package requests

import (
	"context"
	"sync"

	"github.com/WhileEndless/go-requests/pkg/buffer"
	"github.com/WhileEndless/go-requests/pkg/client"
	"github.com/WhileEndless/go-requests/pkg/errors"
	"github.com/WhileEndless/go-requests/pkg/headers"
	"github.com/WhileEndless/go-requests/pkg/timing"
)

// Version is the current version of the requests library
const Version = "1.0.0"

// Re-export key types for easier usage
type (
	// Options controls how connections are established and responses read.
	Options = client.Options

	// Client sends requests with its own options.
	Client = client.Client

	// Handle is a connection plus the response being read from it.
	Handle = client.Handle

	// Store is the case-insensitive header store.
	Store = headers.Store

	// Buffer provides memory-efficient storage with disk spilling.
	Buffer = buffer.Buffer

	// Metrics captures timing information for a request.
	Metrics = timing.Metrics

	// Error represents a structured error with context information.
	Error = errors.Error
)

// Re-export error types for convenience
const (
	ErrorTypeInvalidURL        = errors.ErrorTypeInvalidURL
	ErrorTypeDNS               = errors.ErrorTypeDNS
	ErrorTypeConnection        = errors.ErrorTypeConnection
	ErrorTypeTLS               = errors.ErrorTypeTLS
	ErrorTypeWrite             = errors.ErrorTypeWrite
	ErrorTypeIncompleteHeaders = errors.ErrorTypeIncompleteHeaders
	ErrorTypeMalformedChunk    = errors.ErrorTypeMalformedChunk
	ErrorTypeOutOfMemory       = errors.ErrorTypeOutOfMemory
	ErrorTypeTimeout           = errors.ErrorTypeTimeout
	ErrorTypeProtocol          = errors.ErrorTypeProtocol
	ErrorTypeIO                = errors.ErrorTypeIO
	ErrorTypeValidation        = errors.ErrorTypeValidation
	ErrorTypeRedirect          = errors.ErrorTypeRedirect
)

var (
	mu            sync.Mutex
	defaultClient *client.Client
)

// Init builds the process-wide client used by the package-level helpers.
// It is idempotent; the helpers call it on first use.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if defaultClient != nil {
		return nil
	}
	c, err := client.New(client.DefaultOptions())
	if err != nil {
		return err
	}
	defaultClient = c
	return nil
}

// InitWithOptions replaces the process-wide client with one built from opts.
func InitWithOptions(opts Options) error {
	c, err := client.New(opts)
	if err != nil {
		return err
	}
	mu.Lock()
	defaultClient = c
	mu.Unlock()
	return nil
}

// Destroy drops the process-wide client. Open handles stay usable with
// CloseConnection.
func Destroy() {
	mu.Lock()
	defaultClient = nil
	mu.Unlock()
}

// NewClient returns a client independent of the process-wide one.
func NewClient(opts Options) (*Client, error) {
	return client.New(opts)
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return client.DefaultOptions()
}

func current() (*client.Client, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	if defaultClient == nil {
		return nil, errors.NewValidationError("requests: client destroyed")
	}
	return defaultClient, nil
}

// Request sends method to url, reusing h's connection when it points at the
// same peer. On error h is closed and nil is returned.
func Request(h *Handle, method, url string, body []byte, headers string) (*Handle, error) {
	c, err := current()
	if err != nil {
		h.Close()
		return nil, err
	}
	return c.Do(context.Background(), h, method, url, body, headers)
}

// Get sends a GET request.
func Get(h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return Request(h, "GET", url, body, headers)
}

// Post sends a POST request.
func Post(h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return Request(h, "POST", url, body, headers)
}

// Put sends a PUT request.
func Put(h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return Request(h, "PUT", url, body, headers)
}

// Patch sends a PATCH request.
func Patch(h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return Request(h, "PATCH", url, body, headers)
}

// Delete sends a DELETE request.
func Delete(h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return Request(h, "DELETE", url, body, headers)
}

// Head sends a HEAD request.
func Head(h *Handle, url string, body []byte, headers string) (*Handle, error) {
	return Request(h, "HEAD", url, body, headers)
}

// HeaderValue returns the response header name of h, or "" when absent.
func HeaderValue(h *Handle, name string) string {
	v, _ := h.Header(name)
	return v
}

// StatusCode returns the status code of the last response on h.
func StatusCode(h *Handle) int {
	return h.StatusCode()
}

// ReadBody reads body bytes of the last response into p. It returns 0 once
// the body is exhausted.
func ReadBody(h *Handle, p []byte) int {
	n, _ := h.Read(p)
	return n
}

// CloseConnection closes *h and sets it to nil.
func CloseConnection(h **Handle) error {
	if h == nil || *h == nil {
		return nil
	}
	err := (*h).Close()
	*h = nil
	return err
}

// ParseForm parses a urlencoded body such as "a=1&b=2" into a Store.
func ParseForm(data string) (*Store, error) {
	return headers.ParseForm(data)
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) string {
	return string(errors.GetErrorType(err))
}
