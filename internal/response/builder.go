package response

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/f4ah6o/ferris-serve-go/internal/request"
	"github.com/f4ah6o/ferris-serve-go/internal/resolve"
)

// Used to read served files. Can be mocked.
var readFile = os.ReadFile

// Builder produces responses for requests against a root directory.
// It is safe for concurrent use.
type Builder struct {
	res   *resolve.Resolver
	types TypeTable
}

// NewBuilder creates a Builder serving files through res. A nil types table
// selects DefaultTypes.
func NewBuilder(res *resolve.Resolver, types TypeTable) *Builder {
	if types == nil {
		types = DefaultTypes()
	}
	return &Builder{res: res, types: types}
}

// Build dispatches on the request method and path:
//
//   - GET / serves index.html as text/html
//   - GET of a regular file under root serves it with an inferred type
//   - GET of anything else is 404, with 404.html as body
//   - GET of a path escaping root is 400
//   - any other method is 400, with 400.html if present
//
// A served file that exists but cannot be read results in 500.
func (b *Builder) Build(req request.Request) *Response {
	if req.Method != http.MethodGet {
		return b.Error(http.StatusBadRequest, fmt.Errorf("unsupported method %q", req.Method))
	}

	target, err := req.Target()
	if err != nil {
		return b.Error(http.StatusBadRequest, err)
	}

	name, err := b.res.Resolve(target)
	if err != nil {
		if errors.Is(err, resolve.ErrOutsideRoot) || errors.Is(err, resolve.ErrInvalidPath) {
			return b.Error(http.StatusBadRequest, err)
		}
		return b.Error(http.StatusNotFound, err)
	}

	info, err := os.Stat(name)
	if err != nil {
		return b.Error(http.StatusNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return b.Error(http.StatusNotFound, fmt.Errorf("%s: not a regular file", target))
	}

	body, err := readFile(name)
	if err != nil {
		res := b.page(http.StatusInternalServerError, "Error reading file: "+target)
		res.Err = errors.Join(fmt.Errorf("read %s: %w", target, err), res.Err)
		return res
	}

	contentType := b.types.Lookup(name)
	if target == "/" {
		contentType = "text/html"
	}
	return &Response{
		Status:      http.StatusOK,
		ContentType: contentType,
		Body:        body,
	}
}

// Error builds an error response for status. The body is <status>.html from
// the root when it exists, otherwise a generated page. cause is kept on the
// response for logging.
func (b *Builder) Error(status int, cause error) *Response {
	res := b.page(status, "")
	res.Err = errors.Join(cause, res.Err)
	return res
}

// page loads the error page for status. A missing page falls back to the
// generated one; a page that exists but cannot be read gets a placeholder
// naming the failure, and the status is kept either way.
func (b *Builder) page(status int, detail string) *Response {
	res := &Response{Status: status, ContentType: "text/html"}

	name := strconv.Itoa(status) + ".html"
	body, err := readFile(b.res.File(name))
	if err == nil {
		res.Body = body
		return res
	}
	if !errors.Is(err, fs.ErrNotExist) {
		detail = "Error reading file: " + name
		res.Err = fmt.Errorf("read error page %s: %w", name, err)
	}

	body, err = inlinePage(status, detail)
	if err != nil {
		res.ContentType = DefaultType
		body = []byte(strconv.Itoa(status) + " " + http.StatusText(status))
		res.Err = errors.Join(res.Err, err)
	}
	res.Body = body
	return res
}
