package kick

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/kick/internal/jsoncodec"
)

// usersController is the declared controller most tests mount.
type usersController struct {
	BaseController
	Greeting string `inject:"greeting"`
}

func (c *usersController) List(ctx *Context) (any, error) {
	return []string{"ada", "grace"}, nil
}

func (c *usersController) Show(ctx *Context) (any, error) {
	return map[string]any{"id": ctx.Param("id")}, nil
}

func (c *usersController) Greet(ctx *Context) (any, error) {
	return map[string]any{"greeting": c.Greeting}, nil
}

// helloController greets and tags the tracked request.
type helloController struct {
	BaseController
}

func (c *helloController) Hello(ctx *Context) (any, error) {
	c.MergeRequestMetadata(ctx, map[string]any{"greeted": true})
	return map[string]any{"message": "hello"}, nil
}

// newTestApp builds an app with discovery off, a private metadata store and
// synchronous events unless opts say otherwise.
func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	app, err := createTestApp(opts)
	require.NoError(t, err)
	return app
}

func createTestApp(opts Options) (*App, error) {
	if opts.Config == nil {
		opts.Config = &AppConfig{}
	}
	if opts.Config.API.Discovery.Enabled == nil {
		opts.Config.API.Discovery.Enabled = Bool(false)
	}
	if opts.Metadata == nil {
		opts.Metadata = NewMetadataStore()
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger()
	}
	opts.SynchronousEvents = true
	return CreateApp(opts)
}

func serve(h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	return decode[ErrorEnvelope](t, rec).Error
}

// eventRecorder collects every event it observes.
type eventRecorder struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (r *eventRecorder) OnEvent(_ context.Context, event cloudevents.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) ObserverID() string { return "event-recorder" }

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

func (r *eventRecorder) ofType(eventType string) []cloudevents.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []cloudevents.Event
	for _, e := range r.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}
