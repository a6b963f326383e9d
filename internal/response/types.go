package response

import (
	"path/filepath"
	"strings"
)

// DefaultType is used for unknown or missing extensions.
const DefaultType = "text/plain"

var defaultTypes = map[string]string{
	"html": "text/html",
	"css":  "text/css",
	"js":   "text/javascript",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// TypeTable maps lowercase file extensions, without the leading dot, to MIME types.
type TypeTable map[string]string

// DefaultTypes returns a copy of the built-in extension table.
func DefaultTypes() TypeTable {
	t := make(TypeTable, len(defaultTypes))
	for ext, ct := range defaultTypes {
		t[ext] = ct
	}
	return t
}

// With returns a copy of t with overrides applied on top. Override keys are
// lowercased and may carry a leading dot.
func (t TypeTable) With(overrides map[string]string) TypeTable {
	out := make(TypeTable, len(t)+len(overrides))
	for ext, ct := range t {
		out[ext] = ct
	}
	for ext, ct := range overrides {
		out[strings.ToLower(strings.TrimPrefix(ext, "."))] = ct
	}
	return out
}

// Lookup infers the content type of the named file from its extension.
func (t TypeTable) Lookup(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ct, ok := t[ext]; ok && ext != "" {
		return ct
	}
	return DefaultType
}
