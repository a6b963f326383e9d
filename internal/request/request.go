// Package request reads and parses the head of an HTTP/1.x request.
package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// DefaultHeadLimit is the read buffer capacity used when none is configured.
const DefaultHeadLimit = 1024

var (
	// ErrHeadTooLarge is returned by ReadHead when the limit is reached
	// before the end of the request head.
	ErrHeadTooLarge = errors.New("request head too large")
	// ErrBadTarget is returned by Target for paths with invalid escapes.
	ErrBadTarget = errors.New("malformed request target")
)

// Request is the request line of an HTTP request.
// Missing tokens are left empty.
type Request struct {
	Method  string
	Path    string
	Version string
}

// Parse extracts the request line from buf. buf may be zero-padded; anything
// after the first NUL byte or the first newline is ignored. Parse never fails.
func Parse(buf []byte) Request {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		buf = buf[:i]
	}

	var req Request
	fields := bytes.FieldsFunc(buf, isASCIISpace)
	if len(fields) > 0 {
		req.Method = string(fields[0])
	}
	if len(fields) > 1 {
		req.Path = string(fields[1])
	}
	if len(fields) > 2 {
		req.Version = string(fields[2])
	}
	return req
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Target returns the decoded path component of the request target, without
// query or fragment.
func (r Request) Target() (string, error) {
	p := r.Path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadTarget, r.Path)
	}
	return decoded, nil
}

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
)

// ReadHead reads from r until the blank line ending the request head, or
// until limit bytes have been read. Reaching the limit without seeing the
// terminator yields ErrHeadTooLarge. An EOF after some bytes returns them as
// is; an EOF before any byte returns io.EOF.
func ReadHead(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultHeadLimit
	}
	buf := make([]byte, limit)
	n := 0
	for n < limit {
		m, err := r.Read(buf[n:])
		// only the tail can complete a terminator split across reads
		start := max(n-3, 0)
		n += m
		if m > 0 && headEnd(buf[start:n]) {
			return buf[:n], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n == 0 {
					return nil, io.EOF
				}
				return buf[:n], nil
			}
			return buf[:n], fmt.Errorf("read request head: %w", err)
		}
	}
	return buf[:n], fmt.Errorf("%w: no end of head within %d bytes", ErrHeadTooLarge, limit)
}

func headEnd(b []byte) bool {
	return bytes.Contains(b, crlfcrlf) || bytes.Contains(b, lflf)
}
