// Package headers implements the key/value store filled while response
// headers stream in.
//
// A Store is built incrementally: the parser appends partial key and value
// bytes as they arrive and pushes the pair once the field is complete. Lookup
// is case-insensitive and pushing an existing key replaces its value.
package headers

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Transform rewrites a completed value before it is stored.
type Transform func(value string) string

type field struct {
	key   string
	value string
}

// Store is a case-insensitive header map that keeps first-insertion order.
type Store struct {
	index  map[string]int
	fields []field

	pendingKey   []byte
	pendingValue []byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// AppendKey adds bytes to the key being accumulated.
func (s *Store) AppendKey(p []byte) {
	s.pendingKey = append(s.pendingKey, p...)
}

// AppendValue adds bytes to the value being accumulated.
func (s *Store) AppendValue(p []byte) {
	s.pendingValue = append(s.pendingValue, p...)
}

// PendingKey returns the key accumulated so far, trimmed.
func (s *Store) PendingKey() string {
	return string(bytes.TrimSpace(s.pendingKey))
}

// Push commits the pending key/value pair. Surrounding whitespace is trimmed
// from both; transform, if not nil, is applied to the value. A pair with an
// empty key is dropped. Push reports whether a pair was stored.
func (s *Store) Push(transform Transform) bool {
	key := string(bytes.TrimSpace(s.pendingKey))
	value := string(bytes.TrimSpace(s.pendingValue))
	s.Abort()

	if key == "" {
		return false
	}
	if transform != nil {
		value = transform(value)
	}
	s.Set(key, value)
	return true
}

// Abort discards the pending key and value.
func (s *Store) Abort() {
	s.pendingKey = s.pendingKey[:0]
	s.pendingValue = s.pendingValue[:0]
}

// Set stores value under key, replacing any value stored under a key that
// differs only in case. The spelling of the first insertion is kept.
func (s *Store) Set(key, value string) {
	lk := strings.ToLower(key)
	if i, ok := s.index[lk]; ok {
		s.fields[i].value = value
		return
	}
	s.index[lk] = len(s.fields)
	s.fields = append(s.fields, field{key: key, value: value})
}

// Lookup returns the value stored under key, ignoring case.
func (s *Store) Lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	i, ok := s.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return s.fields[i].value, true
}

// Get returns the value stored under key, or "" when absent.
func (s *Store) Get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

// Len returns the number of stored pairs.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Each calls fn for every pair in insertion order until fn returns false.
func (s *Store) Each(fn func(key, value string) bool) {
	if s == nil {
		return
	}
	for _, f := range s.fields {
		if !fn(f.key, f.value) {
			return
		}
	}
}

// WriteTo writes the pairs as "Key: value" lines.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	var total int64
	var err error
	s.Each(func(key, value string) bool {
		var n int
		n, err = fmt.Fprintf(w, "%s: %s\n", key, value)
		total += int64(n)
		return err == nil
	})
	return total, err
}

// Reset empties the store so it can be filled again.
func (s *Store) Reset() {
	clear(s.index)
	s.fields = s.fields[:0]
	s.Abort()
}
