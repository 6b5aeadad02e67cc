// Package buffer provides a memory-bounded body sink that spills to disk.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/errors"
)

// Buffer stores data in a pooled in-memory buffer until it grows past the
// limit, then moves everything to a temporary file.
type Buffer struct {
	mu     sync.Mutex
	mem    *bytebufferpool.ByteBuffer
	file   *os.File
	path   string
	size   int64
	limit  int64
	closed bool
}

// New creates a new Buffer with the provided memory limit.
func New(limit int64) *Buffer {
	if limit <= 0 {
		limit = constants.DefaultBodyMemLimit
	}
	return &Buffer{limit: limit, mem: bytebufferpool.Get()}
}

// Write stores p, spilling to disk once above the memory limit.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewIOError("writing to closed buffer", nil)
	}

	if b.file == nil && int64(b.mem.Len()+len(p)) <= b.limit {
		b.size += int64(len(p))
		return b.mem.Write(p)
	}

	if b.file == nil {
		if err := b.spill(); err != nil {
			return 0, err
		}
	}

	n, err := b.file.Write(p)
	b.size += int64(n)
	if err != nil {
		return n, errors.NewIOError("writing to temp file", err)
	}
	return n, nil
}

func (b *Buffer) spill() error {
	tmp, err := os.CreateTemp("", "requests-body-*.tmp")
	if err != nil {
		return errors.NewIOError("creating temp file", err)
	}
	b.file = tmp
	b.path = tmp.Name()

	if b.mem.Len() > 0 {
		if _, err := tmp.Write(b.mem.B); err != nil {
			return errors.NewIOError("writing to temp file", err)
		}
	}
	b.mem.Reset()
	return nil
}

// Bytes returns the in-memory data, or nil once the data spilled to disk.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.file != nil || b.mem == nil {
		return nil
	}
	return b.mem.B
}

// Path returns the temp file backing a spilled buffer.
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Size returns the total number of bytes written.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// IsSpilled returns true if the buffer has spilled to disk.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Reader provides a fresh reader over the stored data.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewIOError("reading closed buffer", nil)
	}

	if b.file != nil {
		if err := b.file.Sync(); err != nil {
			return nil, errors.NewIOError("syncing temp file", err)
		}
		f, err := os.Open(b.path)
		if err != nil {
			return nil, errors.NewIOError("opening temp file for reading", err)
		}
		return f, nil
	}

	return io.NopCloser(bytes.NewReader(b.mem.B)), nil
}

// Close releases the memory buffer and removes the temp file, if any.
// It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.mem != nil {
		bytebufferpool.Put(b.mem)
		b.mem = nil
	}

	if b.file == nil {
		return nil
	}

	err := b.file.Close()
	if removeErr := os.Remove(b.path); removeErr != nil && err == nil {
		err = removeErr
	}
	b.file = nil
	b.path = ""
	if err != nil {
		return errors.NewIOError("closing temp file", err)
	}
	return nil
}
