package client

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/WhileEndless/go-requests/pkg/errors"
)

type parseState uint8

const (
	inStatus parseState = iota
	inKey
	inValue
)

// headerParser turns the header block into the handle's store, block by
// block, without holding more than one block itself.
type headerParser struct {
	h     *Handle
	limit int

	state  parseState
	status []byte
	// lineEmpty is set while the current line holds nothing but '\r'.
	lineEmpty bool
	lastKey   string
	total     int
}

// readHeaders parses the status line and header block. Bytes read past the
// blank line are left in h.residue.
func (h *Handle) readHeaders(limit int) error {
	p := &headerParser{h: h, limit: limit, state: inStatus, lineEmpty: true}

	h.timer.StartTTFB()
	for {
		n, err := h.conn.Receive(h.scratch[:], false)
		if n <= 0 {
			return errors.NewIncompleteHeadersError(h.parts.Host, int(h.parts.Port), err)
		}
		h.timer.EndTTFB()

		done, perr := p.feed(h.scratch[:n])
		if perr != nil {
			return perr
		}
		if done {
			h.timer.EndHeaders()
			return nil
		}
	}
}

// feed consumes one block and reports whether the blank line was reached.
func (p *headerParser) feed(block []byte) (bool, error) {
	p.total += len(block)
	mark := 0
	for i, c := range block {
		switch {
		case c == '\n':
			p.flush(block[mark:i])
			mark = i + 1
			end, err := p.endLine()
			if err != nil {
				return false, err
			}
			if end {
				p.h.residue = append(p.h.residue[:0], block[i+1:]...)
				return true, nil
			}
		case c == ':' && p.state == inKey:
			p.flush(block[mark:i])
			mark = i + 1
			p.state = inValue
			p.lineEmpty = false
		case p.lineEmpty && p.state == inKey && (c == ' ' || c == '\t') && p.lastKey != "":
			// obsolete line folding continues the previous value
			prev := p.h.store.Get(p.lastKey)
			p.h.store.AppendKey([]byte(p.lastKey))
			p.h.store.AppendValue([]byte(prev + " "))
			p.state = inValue
			p.lineEmpty = false
			mark = i + 1
		case c != '\r':
			p.lineEmpty = false
		}
	}
	p.flush(block[mark:])

	if p.total > p.limit {
		return false, errors.NewOutOfMemoryError("response header block", p.limit)
	}
	return false, nil
}

func (p *headerParser) flush(b []byte) {
	if len(b) == 0 {
		return
	}
	switch p.state {
	case inStatus:
		p.status = append(p.status, b...)
	case inKey:
		p.h.store.AppendKey(b)
	case inValue:
		p.h.store.AppendValue(b)
	}
}

// endLine commits the line just terminated and reports whether it was the
// blank line closing the header block.
func (p *headerParser) endLine() (bool, error) {
	defer func() { p.lineEmpty = true }()

	switch p.state {
	case inStatus:
		line := string(bytes.TrimSpace(p.status))
		if line == "" {
			// tolerate empty lines ahead of the status line
			return false, nil
		}
		if err := p.h.parseStatusLine(line); err != nil {
			return false, err
		}
		p.status = nil
		p.state = inKey
	case inKey:
		if p.lineEmpty {
			return true, nil
		}
		// a line without a colon is dropped
		p.h.store.Abort()
	case inValue:
		key := p.h.store.PendingKey()
		if p.h.store.Push(nil) {
			p.lastKey = key
		}
		p.state = inKey
	}
	return false, nil
}

// parseStatusLine extracts the protocol and the three digit status code
// from a line such as "HTTP/1.1 404 Not Found".
func (h *Handle) parseStatusLine(line string) error {
	if !strings.HasPrefix(line, "HTTP/") {
		return errors.NewProtocolError("malformed status line: "+strconv.Quote(line), nil)
	}
	proto, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimLeft(rest, " ")
	if len(rest) < 3 || (len(rest) > 3 && rest[3] != ' ') {
		return errors.NewProtocolError("malformed status line: "+strconv.Quote(line), nil)
	}
	code, err := strconv.Atoi(rest[:3])
	if err != nil || code < 100 {
		return errors.NewProtocolError("invalid status code in "+strconv.Quote(line), err)
	}

	h.proto = proto
	h.statusCode = code
	h.statusLine = line
	return nil
}
