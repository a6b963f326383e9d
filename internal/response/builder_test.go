package response

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/f4ah6o/ferris-serve-go/internal/request"
	"github.com/f4ah6o/ferris-serve-go/internal/resolve"
)

func ExpectEqual(t *testing.T, expect, actual string) {
	t.Helper()
	if expect != actual {
		t.Errorf("Got %q, want %q", actual, expect)
	}
}

// newSite creates a root directory holding files and returns a Builder for it.
func newSite(t *testing.T, files map[string]string) *Builder {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	res, err := resolve.New(dir)
	if err != nil {
		t.Fatalf("resolve.New() error: %v", err)
	}
	return NewBuilder(res, nil)
}

func get(path string) request.Request {
	return request.Request{Method: "GET", Path: path, Version: "HTTP/1.1"}
}

func TestBuildIndex(t *testing.T) {
	b := newSite(t, map[string]string{
		"index.html": "<h1>Home</h1>",
		"404.html":   "<h1>Missing</h1>",
	})

	res := b.Build(request.Parse([]byte("GET / HTTP/1.1\r\n\r\n")))
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	ExpectEqual(t, "HTTP/1.1 200 OK", res.StatusLine())
	ExpectEqual(t, "text/html", res.ContentType)
	ExpectEqual(t, "<h1>Home</h1>", string(res.Body))
}

func TestBuildMissingFile(t *testing.T) {
	b := newSite(t, map[string]string{
		"index.html": "<h1>Home</h1>",
		"404.html":   "<h1>Nothing here</h1>",
	})

	for _, path := range []string{"/foo.png", "/docs/", "/nested/deeper/x.css", ""} {
		t.Run(path, func(t *testing.T) {
			res := b.Build(get(path))
			if res.Status != 404 {
				t.Fatalf("Status = %d, want 404", res.Status)
			}
			ExpectEqual(t, "text/html", res.ContentType)
			ExpectEqual(t, "<h1>Nothing here</h1>", string(res.Body))
			if res.Err == nil {
				t.Error("Err should record the cause")
			}
		})
	}
}

func TestBuildMissingIndex(t *testing.T) {
	b := newSite(t, map[string]string{"404.html": "gone"})
	res := b.Build(get("/"))
	if res.Status != 404 {
		t.Fatalf("Status = %d, want 404", res.Status)
	}
	ExpectEqual(t, "gone", string(res.Body))
}

func TestBuildContentTypes(t *testing.T) {
	files := map[string]string{
		"page.html":     "<p>page</p>",
		"style.css":     "body{}",
		"app.js":        "alert(1)",
		"logo.png":      "\x89PNG",
		"photo.jpg":     "jpg",
		"photo2.jpeg":   "jpeg",
		"anim.gif":      "GIF89a",
		"UPPER.PNG":     "png",
		"notes.txt":     "notes",
		"archive.tar.x": "bin",
		"README":        "readme",
		"docs/a.html":   "<p>a</p>",
	}
	b := newSite(t, files)

	tests := []struct {
		path string
		want string
	}{
		{"/page.html", "text/html"},
		{"/style.css", "text/css"},
		{"/app.js", "text/javascript"},
		{"/logo.png", "image/png"},
		{"/photo.jpg", "image/jpeg"},
		{"/photo2.jpeg", "image/jpeg"},
		{"/anim.gif", "image/gif"},
		{"/UPPER.PNG", "image/png"},
		{"/notes.txt", "text/plain"},
		{"/archive.tar.x", "text/plain"},
		{"/README", "text/plain"},
		{"/docs/a.html", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := b.Build(get(tt.path))
			if res.Status != 200 {
				t.Fatalf("Status = %d, want 200 (err: %v)", res.Status, res.Err)
			}
			ExpectEqual(t, tt.want, res.ContentType)
			ExpectEqual(t, files[strings.TrimPrefix(tt.path, "/")], string(res.Body))
		})
	}
}

func TestBuildRoundTrip(t *testing.T) {
	want := []byte{0x00, 0xff, 0x10, '\r', '\n', 0x80, 'x'}
	b := newSite(t, nil)
	if err := os.WriteFile(b.res.File("blob.bin"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	res := b.Build(get("/blob.bin?cache=1"))
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	ExpectEqual(t, string(want), string(res.Body))
}

func TestBuildDecomposedName(t *testing.T) {
	b := newSite(t, map[string]string{"cafe\u0301.txt": "decomposed"})

	res := b.Build(get("/caf%65%CC%81.txt"))
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200 (err %v)", res.Status, res.Err)
	}
	ExpectEqual(t, "decomposed", string(res.Body))
}

func TestBuildNonGet(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "Inline body",
			files: map[string]string{"index.html": "home"},
			want:  "<h1>400 Bad Request</h1>",
		},
		{
			name:  "400.html body",
			files: map[string]string{"index.html": "home", "400.html": "<p>bad</p>"},
			want:  "<p>bad</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newSite(t, tt.files)
			for _, req := range []request.Request{
				{Method: "POST", Path: "/", Version: "HTTP/1.1"},
				{Method: "DELETE", Path: "/index.html"},
				{Method: "get", Path: "/"},
				{},
			} {
				res := b.Build(req)
				if res.Status != 400 {
					t.Errorf("%+v: Status = %d, want 400", req, res.Status)
				}
				ExpectEqual(t, "text/html", res.ContentType)
				ExpectEqual(t, tt.want, string(res.Body))
			}
		})
	}
}

func TestBuildTraversal(t *testing.T) {
	outer := t.TempDir()
	root := filepath.Join(outer, "public")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outer, "secret.txt"), []byte("TOP SECRET"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := resolve.New(root)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(res, nil)

	for _, path := range []string{
		"/../secret.txt",
		"../secret.txt",
		"/a/../../secret.txt",
		"/%2e%2e/secret.txt",
		"/..%2fsecret.txt",
	} {
		t.Run(path, func(t *testing.T) {
			res := b.Build(get(path))
			if res.Status != 400 {
				t.Errorf("Status = %d, want 400", res.Status)
			}
			if strings.Contains(string(res.Body), "TOP SECRET") {
				t.Error("response leaked a file outside root")
			}
			if !errors.Is(res.Err, resolve.ErrOutsideRoot) {
				t.Errorf("Err = %v, want ErrOutsideRoot", res.Err)
			}
		})
	}
}

func TestBuildBadEscape(t *testing.T) {
	b := newSite(t, map[string]string{"index.html": "home"})
	res := b.Build(get("/%zz"))
	if res.Status != 400 {
		t.Fatalf("Status = %d, want 400", res.Status)
	}
	if !errors.Is(res.Err, request.ErrBadTarget) {
		t.Errorf("Err = %v, want ErrBadTarget", res.Err)
	}
}

func TestBuildReadFailure(t *testing.T) {
	b := newSite(t, map[string]string{
		"index.html": "home",
		"broken.css": "body{}",
		"404.html":   "missing",
	})
	errDenied := errors.New("permission denied")

	orig := readFile
	defer func() { readFile = orig }()
	readFile = func(name string) ([]byte, error) {
		if filepath.Base(name) == "broken.css" {
			return nil, errDenied
		}
		return orig(name)
	}

	res := b.Build(get("/broken.css"))
	if res.Status != 500 {
		t.Fatalf("Status = %d, want 500", res.Status)
	}
	ExpectEqual(t, "text/html", res.ContentType)
	ExpectEqual(t, "<h1>500 Internal Server Error</h1><p>Error reading file: /broken.css</p>", string(res.Body))
	if !errors.Is(res.Err, errDenied) {
		t.Errorf("Err = %v, want wrapped errDenied", res.Err)
	}
}

func TestBuildErrorPageReadFailure(t *testing.T) {
	b := newSite(t, map[string]string{"index.html": "home", "404.html": "missing"})
	errDenied := errors.New("permission denied")

	orig := readFile
	defer func() { readFile = orig }()
	readFile = func(name string) ([]byte, error) {
		if filepath.Base(name) == "404.html" {
			return nil, errDenied
		}
		return orig(name)
	}

	res := b.Build(get("/nope.png"))
	if res.Status != 404 {
		t.Fatalf("Status = %d, want 404", res.Status)
	}
	ExpectEqual(t, "<h1>404 Not Found</h1><p>Error reading file: 404.html</p>", string(res.Body))
	if !errors.Is(res.Err, errDenied) {
		t.Errorf("Err = %v, want wrapped errDenied", res.Err)
	}
}

func TestBuildTypeOverrides(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"data.json", "page.html"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	res, err := resolve.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(res, DefaultTypes().With(map[string]string{
		".JSON": "application/json",
		"html":  "text/html; charset=utf-8",
	}))

	ExpectEqual(t, "application/json", b.Build(get("/data.json")).ContentType)
	ExpectEqual(t, "text/html; charset=utf-8", b.Build(get("/page.html")).ContentType)
}
