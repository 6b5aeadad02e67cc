// Package errors provides structured error types for the requests library.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorType represents the category of error that occurred.
type ErrorType string

const (
	// ErrorTypeInvalidURL represents a malformed URL or an unsupported scheme
	ErrorTypeInvalidURL ErrorType = "invalid_url"
	// ErrorTypeDNS represents host resolution errors
	ErrorTypeDNS ErrorType = "dns"
	// ErrorTypeConnection represents TCP connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTLS represents TLS handshake errors
	ErrorTypeTLS ErrorType = "tls"
	// ErrorTypeWrite represents failures while sending the request
	ErrorTypeWrite ErrorType = "write"
	// ErrorTypeIncompleteHeaders represents a stream that ended before the header terminator
	ErrorTypeIncompleteHeaders ErrorType = "incomplete_headers"
	// ErrorTypeMalformedChunk represents invalid chunked framing
	ErrorTypeMalformedChunk ErrorType = "malformed_chunk"
	// ErrorTypeOutOfMemory represents a response exceeding a configured memory bound
	ErrorTypeOutOfMemory ErrorType = "out_of_memory"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeProtocol represents other HTTP protocol violations
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeIO represents I/O errors
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeRedirect represents a redirect chain that exceeded its hop limit
	ErrorTypeRedirect ErrorType = "redirect"
)

// Error represents a structured error with context information.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target type.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewInvalidURLError creates an error for a URL the splitter rejects.
func NewInvalidURLError(url, reason string) *Error {
	return &Error{
		Type:      ErrorTypeInvalidURL,
		Message:   fmt.Sprintf("invalid url %q: %s", url, reason),
		Timestamp: time.Now(),
	}
}

// NewDNSError creates a DNS resolution error.
func NewDNSError(host string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeDNS,
		Message:   fmt.Sprintf("DNS lookup failed for host %s", host),
		Cause:     cause,
		Host:      host,
		Timestamp: time.Now(),
	}
}

// NewConnectionError creates a connection error.
func NewConnectionError(host string, port int, cause error) *Error {
	return &Error{
		Type:      ErrorTypeConnection,
		Message:   fmt.Sprintf("failed to connect to %s:%d", host, port),
		Cause:     cause,
		Host:      host,
		Port:      port,
		Timestamp: time.Now(),
	}
}

// NewTLSError creates a TLS handshake error.
func NewTLSError(host string, port int, cause error) *Error {
	return &Error{
		Type:      ErrorTypeTLS,
		Message:   fmt.Sprintf("TLS handshake failed for %s:%d", host, port),
		Cause:     cause,
		Host:      host,
		Port:      port,
		Timestamp: time.Now(),
	}
}

// NewWriteError creates an error for a request that could not be sent.
func NewWriteError(host string, port int, cause error) *Error {
	return &Error{
		Type:      ErrorTypeWrite,
		Message:   fmt.Sprintf("failed to send request to %s:%d", host, port),
		Cause:     cause,
		Host:      host,
		Port:      port,
		Timestamp: time.Now(),
	}
}

// NewIncompleteHeadersError creates an error for a response whose header
// block was cut off.
func NewIncompleteHeadersError(host string, port int, cause error) *Error {
	return &Error{
		Type:      ErrorTypeIncompleteHeaders,
		Message:   "connection ended before the end of the response headers",
		Cause:     cause,
		Host:      host,
		Port:      port,
		Timestamp: time.Now(),
	}
}

// NewMalformedChunkError creates an error for invalid chunked framing.
func NewMalformedChunkError(message string) *Error {
	return &Error{
		Type:      ErrorTypeMalformedChunk,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewOutOfMemoryError creates an error for data exceeding a memory bound.
func NewOutOfMemoryError(what string, limit int) *Error {
	return &Error{
		Type:      ErrorTypeOutOfMemory,
		Message:   fmt.Sprintf("%s exceeds limit of %d bytes", what, limit),
		Timestamp: time.Now(),
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(operation string, timeout time.Duration) *Error {
	return &Error{
		Type:      ErrorTypeTimeout,
		Message:   fmt.Sprintf("%s timed out after %v", operation, timeout),
		Timestamp: time.Now(),
	}
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeProtocol,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewIOError creates an I/O error.
func NewIOError(operation string, cause error) *Error {
	return &Error{
		Type:      ErrorTypeIO,
		Message:   fmt.Sprintf("I/O error during %s", operation),
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Type:      ErrorTypeValidation,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewRedirectError creates an error for a redirect chain that was cut short.
func NewRedirectError(url string, hops int) *Error {
	return &Error{
		Type:      ErrorTypeRedirect,
		Message:   fmt.Sprintf("stopped after %d redirects at %s", hops, url),
		Timestamp: time.Now(),
	}
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	if errors.Is(err, &Error{Type: ErrorTypeTimeout}) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType reports whether err is a structured error of type t.
func IsType(err error, t ErrorType) bool {
	return GetErrorType(err) == t
}

// IsContextCanceled checks if an error is due to context cancellation.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
