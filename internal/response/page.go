package response

import (
	"bytes"
	"fmt"
	"net/http"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inlinePage renders the fallback body used when no error page file is
// available: a heading with the status, and an optional detail paragraph.
// Text is escaped by the renderer, so file names and paths are safe to pass.
func inlinePage(status int, detail string) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, element(atom.H1, fmt.Sprintf("%d %s", status, http.StatusText(status)))); err != nil {
		return nil, fmt.Errorf("render %d page: %w", status, err)
	}
	if detail != "" {
		if err := html.Render(&buf, element(atom.P, detail)); err != nil {
			return nil, fmt.Errorf("render %d page: %w", status, err)
		}
	}
	return buf.Bytes(), nil
}

func element(a atom.Atom, text string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
