// Package response builds and writes HTTP responses for static files.
package response

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Response is a complete HTTP response. It is built fresh for every request.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	// Err records why a non-200 response was produced. It is never sent to
	// the client.
	Err error
}

// StatusLine returns the response status line without the trailing CRLF.
func (r *Response) StatusLine() string {
	return fmt.Sprintf("HTTP/1.1 %d %s", r.Status, http.StatusText(r.Status))
}

// WriteTo writes the status line, headers and body to w. The connection is
// always announced as closing.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Grow(128 + len(r.Body))

	buf.WriteString(r.StatusLine())
	buf.WriteString("\r\n")
	if r.ContentType != "" {
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", r.ContentType)
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	buf.WriteString("Connection: close\r\n")
	buf.WriteString("\r\n")
	buf.Write(r.Body)

	return buf.WriteTo(w)
}
