package kick

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/kick/internal/jsoncodec"
)

// maxBodyBytes bounds how much of a request body is read for decoding.
const maxBodyBytes = 10 << 20

// RouteInfo describes the route a request was dispatched to.
type RouteInfo struct {
	Method     string   `json:"method"`
	Path       string   `json:"path"`
	Pattern    string   `json:"pattern"`
	Controller string   `json:"controller"`
	Handler    string   `json:"handler"`
	Hash       string   `json:"hash"`
	Tags       []string `json:"tags,omitempty"`
}

// Context is passed to route handlers. It wraps the request and response and
// carries validated inputs.
type Context struct {
	Request *http.Request
	Writer  http.ResponseWriter

	route     RouteInfo
	wildcard  string
	startedAt time.Time
	recorder  *responseWriter

	mu        sync.Mutex
	validated map[ValidationTarget]any
	bodyRead  bool
	body      any
	bodyErr   error
}

type contextKey struct{ name string }

var kickContextKey = &contextKey{"kick-context"}

// contextFrom returns the Context attached to r, creating a bare one for
// requests that did not pass through a registered route.
func contextFrom(r *http.Request) *Context {
	if c, ok := r.Context().Value(kickContextKey).(*Context); ok {
		return c
	}
	return &Context{Request: r, startedAt: time.Now()}
}

// FromRequest returns the route Context for r, if any.
func FromRequest(r *http.Request) (*Context, bool) {
	c, ok := r.Context().Value(kickContextKey).(*Context)
	return c, ok
}

// Context returns the request's context.Context.
func (c *Context) Context() context.Context { return c.Request.Context() }

// Route describes the matched route.
func (c *Context) Route() RouteInfo { return c.route }

// StartedAt is when the route pipeline began.
func (c *Context) StartedAt() time.Time { return c.startedAt }

// RequestID is the id of the tracked request, empty when untracked.
func (c *Context) RequestID() string {
	if s := requestStore(c.Request.Context()); s != nil {
		return s.ID()
	}
	return ""
}

// Param returns a raw path parameter. Catch-all parameters are available
// under their declared name.
func (c *Context) Param(name string) string {
	if name == c.wildcard && name != "" {
		return chi.URLParam(c.Request, "*")
	}
	return chi.URLParam(c.Request, name)
}

// QueryValue returns the first raw query value for name.
func (c *Context) QueryValue(name string) string {
	return c.Request.URL.Query().Get(name)
}

// Params returns the validated params, or the raw params as a map.
func (c *Context) Params() any { return c.input(TargetParams) }

// Query returns the validated query, or the raw query as a map.
func (c *Context) Query() any { return c.input(TargetQuery) }

// Body returns the validated body, or the decoded JSON body.
func (c *Context) Body() (any, error) {
	c.mu.Lock()
	v, ok := c.validated[TargetBody]
	c.mu.Unlock()
	if ok {
		return v, nil
	}
	return c.rawInput(TargetBody)
}

// Bind decodes the given request part into dst, using the validated value
// when a schema ran.
func (c *Context) Bind(target ValidationTarget, dst any) error {
	var src any
	if target == TargetBody {
		body, err := c.Body()
		if err != nil {
			return err
		}
		src = body
	} else {
		src = c.input(target)
	}
	if err := jsoncodec.Convert(src, dst); err != nil {
		return NewError(CodeValidationError, "Invalid "+string(target),
			WithStatus(http.StatusBadRequest), WithCause(err),
			WithDetails(map[string]any{"target": string(target), "issues": []string{err.Error()}}))
	}
	return nil
}

// Written reports whether a response has been started.
func (c *Context) Written() bool {
	return c.recorder != nil && c.recorder.Written()
}

// JSON writes v with the given status.
func (c *Context) JSON(status int, v any) error {
	return writeJSON(c.Writer, status, v)
}

func (c *Context) input(target ValidationTarget) any {
	c.mu.Lock()
	v, ok := c.validated[target]
	c.mu.Unlock()
	if ok {
		return v
	}
	raw, _ := c.rawInput(target)
	return raw
}

func (c *Context) setValidated(target ValidationTarget, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.validated == nil {
		c.validated = make(map[ValidationTarget]any)
	}
	c.validated[target] = v
}

// rawInput returns the unvalidated request part in a JSON-like shape.
func (c *Context) rawInput(target ValidationTarget) (any, error) {
	switch target {
	case TargetParams:
		return c.rawParams(), nil
	case TargetQuery:
		return rawQuery(c.Request), nil
	case TargetBody:
		return c.decodeBody()
	}
	return nil, nil
}

func (c *Context) rawParams() map[string]any {
	out := map[string]any{}
	rctx := chi.RouteContext(c.Request.Context())
	if rctx == nil {
		return out
	}
	for i, key := range rctx.URLParams.Keys {
		if i >= len(rctx.URLParams.Values) {
			break
		}
		if key == "*" && c.wildcard != "" {
			key = c.wildcard
		}
		out[key] = rctx.URLParams.Values[i]
	}
	return out
}

func rawQuery(r *http.Request) map[string]any {
	out := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		items := make([]any, len(values))
		for i, v := range values {
			items[i] = v
		}
		out[key] = items
	}
	return out
}

func (c *Context) decodeBody() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bodyRead {
		return c.body, c.bodyErr
	}
	c.bodyRead = true
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.bodyErr = NewError(CodeInvalidBody, "Unable to read request body",
			WithStatus(http.StatusBadRequest), WithCause(err))
		return nil, c.bodyErr
	}
	c.body, err = jsoncodec.DecodeValue(data)
	if err != nil {
		c.bodyErr = NewError(CodeInvalidBody, "Malformed JSON body",
			WithStatus(http.StatusBadRequest), WithCause(err))
	}
	return c.body, c.bodyErr
}

// responseWriter records the status of a response and whether it started.
type responseWriter struct {
	http.ResponseWriter
	status  atomic.Int32
	written atomic.Bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.written.CompareAndSwap(false, true) {
		rw.status.Store(int32(code))
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.written.CompareAndSwap(false, true) {
		rw.status.Store(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Status is the response status, 200 when nothing was written explicitly.
func (rw *responseWriter) Status() int {
	if s := rw.status.Load(); s != 0 {
		return int(s)
	}
	return http.StatusOK
}

func (rw *responseWriter) Written() bool { return rw.written.Load() }

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		rw.written.Store(true)
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return jsoncodec.Encode(w, v)
}
