package kick

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

type registrarOptions struct {
	store  *MetadataStore
	logger Logger
	events *EventSubject
	prefix string
}

// RegistrarOption customises a Registrar.
type RegistrarOption func(*registrarOptions)

// WithRegistrarMetadata reads declarations from store instead of
// DefaultMetadata.
func WithRegistrarMetadata(store *MetadataStore) RegistrarOption {
	return func(o *registrarOptions) { o.store = store }
}

// WithRegistrarLogger logs route mapping to logger.
func WithRegistrarLogger(logger Logger) RegistrarOption {
	return func(o *registrarOptions) { o.logger = logger }
}

// WithRegistrarEvents emits route.registered and controller.mapped events.
func WithRegistrarEvents(events *EventSubject) RegistrarOption {
	return func(o *registrarOptions) { o.events = events }
}

// WithRoutePrefix prepends prefix to every controller route.
func WithRoutePrefix(prefix string) RegistrarOption {
	return func(o *registrarOptions) { o.prefix = prefix }
}

// Registrar binds controllers onto one router. Route signatures are scoped to
// the registrar, so two applications never conflict with each other.
type Registrar struct {
	router    chi.Router
	container *Container
	store     *MetadataStore
	logger    Logger
	events    *EventSubject
	prefix    string

	mu         sync.Mutex
	signatures map[string]string
	routes     []RouteInfo
}

// NewRegistrar creates a registrar for router resolving controllers from
// container.
func NewRegistrar(router chi.Router, container *Container, opts ...RegistrarOption) *Registrar {
	o := registrarOptions{store: DefaultMetadata, logger: NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if container == nil {
		container = NewContainer()
	}
	return &Registrar{
		router:     router,
		container:  container,
		store:      o.store,
		logger:     o.logger,
		events:     o.events,
		prefix:     o.prefix,
		signatures: make(map[string]string),
	}
}

// Prefix is the route prefix applied to controllers.
func (r *Registrar) Prefix() string { return r.prefix }

// ClaimRoute reserves method and path for owner without mounting anything,
// so framework endpoints take part in conflict detection. It returns the
// route hash.
func (r *Registrar) ClaimRoute(method Method, path, owner string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimLocked(method, BuildRoutePath(path), owner)
}

func (r *Registrar) claimLocked(method Method, fullPath, owner string) (string, error) {
	signature := routeSignature(method, fullPath)
	if existing, dup := r.signatures[signature]; dup {
		return "", NewError(CodeRouteConflict,
			fmt.Sprintf("Duplicate route detected for [%s] %s", method.HTTP(), fullPath),
			WithDetails(map[string]any{
				"method":    method.HTTP(),
				"path":      fullPath,
				"existing":  existing,
				"duplicate": owner,
			}))
	}
	r.signatures[signature] = owner
	return routeHash(signature), nil
}

// RegisterControllers mounts every route of the given controller types.
// Types without controller metadata are skipped. The first error stops
// registration; routes mounted before it stay in place.
func (r *Registrar) RegisterControllers(ctx context.Context, types []reflect.Type) error {
	for _, t := range types {
		if err := r.registerController(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registrar) registerController(ctx context.Context, t reflect.Type) error {
	meta, ok := r.store.ControllerMetadata(t)
	if !ok {
		r.logger.Debug("Skipping type without controller metadata", "type", typeKey(t))
		return nil
	}
	instance, err := r.resolveController(t)
	if err != nil {
		return err
	}

	name := typeName(t)
	defs := r.store.Routes(t)
	for _, def := range defs {
		if err := r.registerRoute(ctx, t, name, meta, def, instance); err != nil {
			return err
		}
	}

	r.logger.Info("Mapped controller", "controller", name, "basePath", meta.BasePath, "routes", len(defs))
	r.events.emit(ctx, EventTypeControllerMapped, map[string]any{
		"controller": name,
		"basePath":   meta.BasePath,
		"tags":       meta.Tags,
		"routes":     len(defs),
	})
	return nil
}

// resolveController binds t in the container when needed and returns its
// singleton. Types without a provider are zero-value constructed and get
// their inject-tagged fields filled.
func (r *Registrar) resolveController(t reflect.Type) (any, error) {
	key := typeKey(t)
	if !r.container.IsBound(key) {
		provider, ok := r.store.Provider(t)
		if !ok {
			provider = func(c *Container) (any, error) {
				v := newControllerValue(t)
				if t.Kind() == reflect.Pointer {
					if err := c.Inject(v); err != nil {
						return nil, err
					}
				}
				return v, nil
			}
		}
		if err := r.container.BindSingleton(key, provider); err != nil {
			return nil, err
		}
	}
	instance, err := r.container.Resolve(key)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", typeName(t), err)
	}
	return instance, nil
}

func (r *Registrar) registerRoute(ctx context.Context, t reflect.Type, name string, meta ControllerMetadata, def RouteDefinition, instance any) error {
	if def.Handler == nil {
		return NewError(CodeInvalidRouteHandler,
			fmt.Sprintf("Route handler %s on %s is not a function", def.HandlerName, name),
			WithDetails(map[string]any{"controller": name, "handler": def.HandlerName}))
	}
	if err := checkValidation(def.Validation); err != nil {
		return err
	}

	fullPath := BuildRoutePath(r.prefix, meta.BasePath, def.Path)
	pattern, wildcard, err := chiPattern(fullPath)
	if err != nil {
		return NewError(CodeInvalidRouteHandler, err.Error(),
			WithDetails(map[string]any{"controller": name, "handler": def.HandlerName}))
	}

	r.mu.Lock()
	hash, err := r.claimLocked(def.Method, fullPath, name+"."+def.HandlerName)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	info := RouteInfo{
		Method:     def.Method.HTTP(),
		Path:       fullPath,
		Pattern:    pattern,
		Controller: name,
		Handler:    def.HandlerName,
		Hash:       hash,
		Tags:       append([]string(nil), meta.Tags...),
	}

	chain := []Middleware{tagMiddleware(info, wildcard)}
	if def.Validation != nil {
		chain = append(chain, validationMiddleware(def.Validation))
	}
	chain = append(chain, meta.Middlewares...)
	chain = append(chain, def.Middlewares...)
	r.router.With(chain...).Method(info.Method, pattern, endpoint(def.Handler, instance, r.logger))

	r.mu.Lock()
	r.routes = append(r.routes, info)
	r.mu.Unlock()

	r.logger.Debug("Mapped route", "method", info.Method, "path", fullPath, "controller", name, "handler", def.HandlerName)
	r.events.emit(ctx, EventTypeRouteRegistered, map[string]any{
		"method":     info.Method,
		"path":       fullPath,
		"controller": name,
		"handler":    def.HandlerName,
		"hash":       hash,
		"type":       typeKey(t),
	})
	return nil
}

// Routes lists mounted controller routes in registration order.
func (r *Registrar) Routes() []RouteInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RouteInfo, len(r.routes))
	copy(out, r.routes)
	return out
}

// tagMiddleware attaches the route Context to the request and tags the
// tracked request with the route it matched.
func tagMiddleware(info RouteInfo, wildcard string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rw := wrapResponseWriter(w)
			c := &Context{Writer: rw, route: info, wildcard: wildcard, startedAt: time.Now(), recorder: rw}
			ctx := context.WithValue(req.Context(), kickContextKey, c)
			req = req.WithContext(ctx)
			c.Request = req
			if scope := scopeFrom(ctx); scope != nil {
				scope.tracker.MergeMetadata(ctx, map[string]any{
					"route":     info.Path,
					"method":    info.Method,
					"routeHash": info.Hash,
				})
			}
			next.ServeHTTP(rw, req)
		})
	}
}

// endpoint runs the handler and writes a non-nil result as JSON unless the
// handler already responded. Errors and panics go to HandleError.
func endpoint(handler RouteHandler, instance any, logger Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c := contextFrom(req)
		c.Request = req
		c.Writer = w
		if c.recorder == nil {
			c.recorder = wrapResponseWriter(w)
			c.Writer = c.recorder
		}

		result, err := invokeHandler(handler, instance, c)
		if err != nil {
			HandleError(c.Writer, req, err)
			return
		}
		if result == nil || c.Written() {
			return
		}
		reqCtx := req.Context()
		if scope := scopeFrom(reqCtx); scope != nil {
			scope.tracker.RecordResponse(reqCtx, http.StatusOK, result)
		}
		if err := c.JSON(http.StatusOK, result); err != nil {
			logger.Error("Failed to encode response", "route", c.route.Path, "error", err)
		}
	}
}

func invokeHandler(handler RouteHandler, instance any, c *Context) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			result, err = nil, &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return handler(instance, c)
}
