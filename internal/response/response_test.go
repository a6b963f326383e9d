package response

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteTo(t *testing.T) {
	res := &Response{
		Status:      200,
		ContentType: "text/html",
		Body:        []byte("<h1>Home</h1>"),
	}
	expect := strings.Join([]string{
		"HTTP/1.1 200 OK\r\n",
		"Content-Type: text/html\r\n",
		"Content-Length: 13\r\n",
		"Connection: close\r\n",
		"\r\n",
		"<h1>Home</h1>",
	}, "")

	w := new(bytes.Buffer)
	n, err := res.WriteTo(w)
	if err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}
	if int(n) != len(expect) {
		t.Errorf("WriteTo() = %d bytes, want %d", n, len(expect))
	}
	ExpectEqual(t, expect, w.String())
}

func TestWriteToEmptyBody(t *testing.T) {
	res := &Response{Status: 404}
	w := new(bytes.Buffer)
	if _, err := res.WriteTo(w); err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}
	ExpectEqual(t, "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", w.String())
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "HTTP/1.1 200 OK"},
		{400, "HTTP/1.1 400 Bad Request"},
		{404, "HTTP/1.1 404 Not Found"},
		{431, "HTTP/1.1 431 Request Header Fields Too Large"},
		{500, "HTTP/1.1 500 Internal Server Error"},
	}
	for _, tt := range tests {
		ExpectEqual(t, tt.want, (&Response{Status: tt.status}).StatusLine())
	}
}

func TestTypeTableLookup(t *testing.T) {
	types := DefaultTypes()
	tests := []struct {
		name string
		want string
	}{
		{"index.html", "text/html"},
		{"a/b/c.CSS", "text/css"},
		{"x.Js", "text/javascript"},
		{"img.jpeg", "image/jpeg"},
		{"noext", DefaultType},
		{"trailingdot.", DefaultType},
		{".hidden", DefaultType},
		{"file.webp", DefaultType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ExpectEqual(t, tt.want, types.Lookup(tt.name))
		})
	}
}

func TestTypeTableWithDoesNotMutate(t *testing.T) {
	base := DefaultTypes()
	_ = base.With(map[string]string{"css": "text/x-css"})
	ExpectEqual(t, "text/css", base.Lookup("a.css"))

	if DefaultTypes()["css"] != "text/css" {
		t.Error("DefaultTypes() should return an unmodified copy")
	}
}
