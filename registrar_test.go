package kick

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportsController struct{}

func (c *reportsController) Show(ctx *Context) (any, error) {
	return map[string]any{"reportId": ctx.Param("id")}, nil
}

func (c *reportsController) Files(ctx *Context) (any, error) {
	return map[string]any{"path": ctx.Param("path"), "params": ctx.Params()}, nil
}

func (c *reportsController) Fail(ctx *Context) (any, error) {
	return nil, NewError("REPORT_LOCKED", "Report is locked",
		WithStatus(http.StatusConflict), WithDetails(map[string]any{"id": ctx.Param("id")}))
}

func (c *reportsController) Boom(ctx *Context) (any, error) {
	panic("exploded")
}

func (c *reportsController) Opaque(ctx *Context) (any, error) {
	return nil, errors.New("database password is hunter2")
}

func newRegistrar(t *testing.T, store *MetadataStore, opts ...RegistrarOption) (*chi.Mux, *Registrar) {
	t.Helper()
	router := chi.NewRouter()
	opts = append([]RegistrarOption{WithRegistrarMetadata(store)}, opts...)
	return router, NewRegistrar(router, NewContainer(), opts...)
}

func TestRegistrarMountsDeclaredRoutes(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users", WithTags("users")).
		Get("/", (*usersController).List).
		Get("/:id", (*usersController).Show)

	router, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	rec := serve(router, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ada", "grace"}, decode[[]string](t, rec))

	rec = serve(router, http.MethodGet, "/users/7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "7"}, decode[map[string]any](t, rec))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	routes := reg.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, RouteInfo{
		Method:     http.MethodGet,
		Path:       "/users/:id",
		Pattern:    "/users/{id}",
		Controller: "usersController",
		Handler:    "Show",
		Hash:       routeHash("get:/users/:id"),
		Tags:       []string{"users"},
	}, routes[1])
}

func TestRegistrarAppliesPrefix(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "users").Get("/", (*usersController).List)

	router, reg := newRegistrar(t, store, WithRoutePrefix("/api/v1/"))
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))
	assert.Equal(t, "/api/v1/", reg.Prefix())

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/users", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/users", "").Code)
}

func TestRegistrarRejectsDuplicateRoute(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/reports").Get("/:id", (*usersController).Show)
	DeclareController[*reportsController](store, "/Reports").Get("/{id}", (*reportsController).Show)

	router, reg := newRegistrar(t, store)
	err := reg.RegisterControllers(context.Background(), store.Registered())
	require.Error(t, err)

	appErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeRouteConflict, appErr.Code)
	assert.Equal(t, "Duplicate route detected for [GET] /Reports/{id}", appErr.Message)
	assert.Equal(t, "usersController.Show", appErr.Details["existing"])
	assert.Equal(t, "reportsController.Show", appErr.Details["duplicate"])

	// The first route keeps serving.
	require.Len(t, reg.Routes(), 1)
	rec := serve(router, http.MethodGet, "/reports/9", "")
	assert.Equal(t, map[string]any{"id": "9"}, decode[map[string]any](t, rec))
}

func TestRegistrarMethodIsPartOfSignature(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users").
		Get("/", (*usersController).List).
		Post("/", (*usersController).List)

	_, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))
	assert.Len(t, reg.Routes(), 2)
}

func TestClaimRouteConflictsWithControllers(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/health").Get("/", (*usersController).List)

	_, reg := newRegistrar(t, store)
	hash, err := reg.ClaimRoute(MethodGet, "health/", "kick.Health")
	require.NoError(t, err)
	assert.Equal(t, routeHash("get:/health"), hash)

	err = reg.RegisterControllers(context.Background(), store.Registered())
	assert.True(t, IsCode(err, CodeRouteConflict))
}

func TestRegistrarRejectsNilHandler(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users").Get("/", nil)

	_, reg := newRegistrar(t, store)
	err := reg.RegisterControllers(context.Background(), store.Registered())
	require.True(t, IsCode(err, CodeInvalidRouteHandler), "%v", err)
	assert.Contains(t, err.Error(), "is not a function")
}

func TestRegistrarRejectsUnsupportedSchema(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users").
		Get("/", (*usersController).List, WithValidation(Validation{Query: "not a schema"}))

	_, reg := newRegistrar(t, store)
	err := reg.RegisterControllers(context.Background(), store.Registered())
	require.True(t, IsCode(err, CodeValidationUnsupported), "%v", err)
	appErr, _ := AsError(err)
	assert.Equal(t, "query", appErr.Details["target"])
	assert.Empty(t, reg.Routes())
}

func TestRegistrarRejectsMisplacedCatchAll(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*reportsController](store, "/files").Get("/:path*/meta", (*reportsController).Files)

	_, reg := newRegistrar(t, store)
	err := reg.RegisterControllers(context.Background(), store.Registered())
	assert.True(t, IsCode(err, CodeInvalidRouteHandler), "%v", err)
}

func TestRegistrarCatchAllParam(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*reportsController](store, "/files").Get("/:path*", (*reportsController).Files)

	router, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	body := decode[map[string]any](t, serve(router, http.MethodGet, "/files/a/b/c.txt", ""))
	assert.Equal(t, "a/b/c.txt", body["path"])
	assert.Equal(t, map[string]any{"path": "a/b/c.txt"}, body["params"])
}

func TestRegistrarHandlerErrors(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*reportsController](store, "/reports").
		Get("/:id/fail", (*reportsController).Fail).
		Get("/boom", (*reportsController).Boom).
		Get("/opaque", (*reportsController).Opaque)

	router, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	rec := serve(router, http.MethodGet, "/reports/3/fail", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrorBody{Code: "REPORT_LOCKED", Message: "Report is locked", Details: map[string]any{"id": "3"}},
		errorEnvelope(t, rec))

	rec = serve(router, http.MethodGet, "/reports/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternalError, errorEnvelope(t, rec).Code)

	rec = serve(router, http.MethodGet, "/reports/opaque", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", errorEnvelope(t, rec).Message)
	assert.False(t, strings.Contains(rec.Body.String(), "hunter2"))
}

func TestRegistrarMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	validate := ParserFunc(func(v any) (any, error) {
		order = append(order, "validation")
		return v, nil
	})

	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users", WithControllerMiddleware(mark("controller"))).
		Get("/", (*usersController).List,
			WithValidation(Validation{Query: validate}),
			WithMiddleware(mark("route-1"), mark("route-2")))

	router, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	rec := serve(router, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"validation", "controller", "route-1", "route-2"}, order)
}

func TestRegistrarResolvesThroughContainer(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users").Get("/greet", (*usersController).Greet)

	router := chi.NewRouter()
	container := NewContainer()
	require.NoError(t, container.BindInstance("greeting", "hi there"))
	reg := NewRegistrar(router, container, WithRegistrarMetadata(store))
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	rec := serve(router, http.MethodGet, "/users/greet", "")
	assert.Equal(t, map[string]any{"greeting": "hi there"}, decode[map[string]any](t, rec))

	instance, err := container.Resolve(typeKey(reflect.TypeOf((**usersController)(nil)).Elem()))
	require.NoError(t, err)
	assert.Equal(t, "hi there", instance.(*usersController).Greeting)
}

func TestRegistrarUsesProvider(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users",
		ProvidedBy(func(*Container) (*usersController, error) {
			return &usersController{Greeting: "from provider"}, nil
		})).
		Get("/greet", (*usersController).Greet)

	router, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	rec := serve(router, http.MethodGet, "/users/greet", "")
	assert.Equal(t, map[string]any{"greeting": "from provider"}, decode[map[string]any](t, rec))
}

func TestRegistrarMissingInjection(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users").Get("/greet", (*usersController).Greet)

	_, reg := newRegistrar(t, store)
	err := reg.RegisterControllers(context.Background(), store.Registered())
	assert.ErrorIs(t, err, ErrBindingNotFound)
}

func TestRegistrarSkipsTypesWithoutMetadata(t *testing.T) {
	store := NewMetadataStore()
	_, reg := newRegistrar(t, store)
	require.NoError(t, reg.RegisterControllers(context.Background(), []reflect.Type{reflect.TypeOf((**reportsController)(nil)).Elem()}))
	assert.Empty(t, reg.Routes())
}

func TestRegistrarEmitsEvents(t *testing.T) {
	store := NewMetadataStore()
	DeclareController[*usersController](store, "/users").
		Get("/", (*usersController).List).
		Get("/:id", (*usersController).Show)

	recorder := &eventRecorder{}
	events := NewEventSubject("test", nil, true)
	require.NoError(t, events.RegisterObserver(recorder))

	_, reg := newRegistrar(t, store, WithRegistrarEvents(events))
	require.NoError(t, reg.RegisterControllers(context.Background(), store.Registered()))

	assert.Equal(t, []string{EventTypeRouteRegistered, EventTypeRouteRegistered, EventTypeControllerMapped}, recorder.types())

	var data map[string]any
	require.NoError(t, recorder.ofType(EventTypeControllerMapped)[0].DataAs(&data))
	assert.Equal(t, "usersController", data["controller"])
	assert.Equal(t, float64(2), data["routes"])
}
