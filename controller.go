package kick

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// ControllerRef identifies a controller type for registration.
type ControllerRef interface {
	ControllerType() reflect.Type
}

type typeRef struct{ t reflect.Type }

func (r typeRef) ControllerType() reflect.Type { return r.t }

// TypeOf returns a reference to controller type T.
func TypeOf[T any]() ControllerRef {
	return typeRef{t: reflect.TypeOf((*T)(nil)).Elem()}
}

type controllerOptions struct {
	tags         []string
	autoRegister bool
	provider     Provider
	middlewares  []Middleware
}

// ControllerOption customises a controller declaration.
type ControllerOption func(*controllerOptions)

// WithTags attaches tags to the controller.
func WithTags(tags ...string) ControllerOption {
	return func(o *controllerOptions) { o.tags = append(o.tags, tags...) }
}

// WithoutAutoRegister keeps the controller out of automatic registration; it
// is only mounted when listed explicitly.
func WithoutAutoRegister() ControllerOption {
	return func(o *controllerOptions) { o.autoRegister = false }
}

// WithControllerMiddleware runs mw before the middleware of every route on
// the controller.
func WithControllerMiddleware(mw ...Middleware) ControllerOption {
	return func(o *controllerOptions) { o.middlewares = append(o.middlewares, mw...) }
}

// ProvidedBy builds the controller through factory instead of zero-value
// construction.
func ProvidedBy[T any](factory func(*Container) (T, error)) ControllerOption {
	return func(o *controllerOptions) {
		o.provider = func(c *Container) (any, error) { return factory(c) }
	}
}

// RouteOption customises a route declaration.
type RouteOption func(*RouteDefinition)

// WithMiddleware attaches middleware to a single route. It runs after
// validation and before the handler, in the order given.
func WithMiddleware(mw ...Middleware) RouteOption {
	return func(r *RouteDefinition) { r.Middlewares = append(r.Middlewares, mw...) }
}

// WithValidation validates route inputs before the handler runs.
func WithValidation(v Validation) RouteOption {
	return func(r *RouteDefinition) { r.Validation = &v }
}

// ControllerDecl declares the routes of controller type T.
type ControllerDecl[T any] struct {
	store *MetadataStore
	typ   reflect.Type
}

// Controller declares T as a controller mounted at path in DefaultMetadata.
//
//	var _ = kick.Controller[*UsersController]("/users").
//		Get("/", (*UsersController).List).
//		Get("/:id", (*UsersController).Show)
func Controller[T any](path string, opts ...ControllerOption) *ControllerDecl[T] {
	return DeclareController[T](DefaultMetadata, path, opts...)
}

// DeclareController is Controller against an explicit store.
func DeclareController[T any](store *MetadataStore, path string, opts ...ControllerOption) *ControllerDecl[T] {
	o := controllerOptions{autoRegister: true}
	for _, opt := range opts {
		opt(&o)
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	store.AnnotateController(t, ControllerMetadata{
		BasePath:    path,
		Tags:        o.tags,
		Middlewares: o.middlewares,
	})
	if o.provider != nil {
		store.SetProvider(t, o.provider)
	}
	if o.autoRegister {
		store.Register(t)
	}
	return &ControllerDecl[T]{store: store, typ: t}
}

// ControllerType implements ControllerRef.
func (d *ControllerDecl[T]) ControllerType() reflect.Type { return d.typ }

// Route declares a handler for method on path, relative to the controller.
func (d *ControllerDecl[T]) Route(method Method, path string, handler func(T, *Context) (any, error), opts ...RouteOption) *ControllerDecl[T] {
	def := RouteDefinition{
		Method:      method,
		Path:        path,
		HandlerName: handlerName(handler),
	}
	if handler != nil {
		def.Handler = func(controller any, ctx *Context) (any, error) {
			typed, ok := controller.(T)
			if !ok {
				return nil, fmt.Errorf("controller %T is not %s", controller, d.typ)
			}
			return handler(typed, ctx)
		}
	}
	for _, opt := range opts {
		opt(&def)
	}
	d.store.AppendRoute(d.typ, def)
	return d
}

func (d *ControllerDecl[T]) Get(path string, handler func(T, *Context) (any, error), opts ...RouteOption) *ControllerDecl[T] {
	return d.Route(MethodGet, path, handler, opts...)
}

func (d *ControllerDecl[T]) Post(path string, handler func(T, *Context) (any, error), opts ...RouteOption) *ControllerDecl[T] {
	return d.Route(MethodPost, path, handler, opts...)
}

func (d *ControllerDecl[T]) Put(path string, handler func(T, *Context) (any, error), opts ...RouteOption) *ControllerDecl[T] {
	return d.Route(MethodPut, path, handler, opts...)
}

func (d *ControllerDecl[T]) Patch(path string, handler func(T, *Context) (any, error), opts ...RouteOption) *ControllerDecl[T] {
	return d.Route(MethodPatch, path, handler, opts...)
}

func (d *ControllerDecl[T]) Delete(path string, handler func(T, *Context) (any, error), opts ...RouteOption) *ControllerDecl[T] {
	return d.Route(MethodDelete, path, handler, opts...)
}

// handlerName extracts the method name from a method expression such as
// (*UsersController).List.
func handlerName(fn any) string {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.IsNil() {
		return "<nil>"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "<unknown>"
	}
	name := strings.TrimSuffix(f.Name(), "-fm")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
