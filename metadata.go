package kick

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
)

// Middleware is standard net/http middleware, so chi and other ecosystem
// middleware can be attached to routes directly.
type Middleware = func(http.Handler) http.Handler

// RouteHandler invokes a route on a controller instance.
type RouteHandler func(controller any, ctx *Context) (any, error)

// RouteDefinition is one route declared on a controller.
type RouteDefinition struct {
	Method Method
	// Path is relative to the controller base path; "" is the base itself.
	Path        string
	HandlerName string
	Handler     RouteHandler
	Middlewares []Middleware
	Validation  *Validation
}

// ControllerMetadata describes a controller type.
type ControllerMetadata struct {
	BasePath    string
	Tags        []string
	Middlewares []Middleware
}

// MetadataStore holds controller and route declarations keyed by controller
// type, plus the registry of controllers that take part in automatic
// registration. It is safe for concurrent use.
type MetadataStore struct {
	mu          sync.RWMutex
	controllers map[reflect.Type]ControllerMetadata
	routes      map[reflect.Type][]RouteDefinition
	providers   map[reflect.Type]Provider
	registered  []reflect.Type
}

// NewMetadataStore creates an empty store.
func NewMetadataStore() *MetadataStore {
	s := &MetadataStore{}
	s.Reset()
	return s
}

// DefaultMetadata is the process-wide store used by Controller.
var DefaultMetadata = NewMetadataStore()

// Reset drops every declaration. Intended for test teardown.
func (s *MetadataStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers = make(map[reflect.Type]ControllerMetadata)
	s.routes = make(map[reflect.Type][]RouteDefinition)
	s.providers = make(map[reflect.Type]Provider)
	s.registered = nil
}

// AnnotateController records controller metadata for t. Later calls replace
// earlier ones.
func (s *MetadataStore) AnnotateController(t reflect.Type, meta ControllerMetadata) {
	meta.BasePath = normalizeBasePath(meta.BasePath)
	meta.Tags = append([]string(nil), meta.Tags...)
	meta.Middlewares = append([]Middleware(nil), meta.Middlewares...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[t] = meta
}

// ControllerMetadata returns the metadata recorded for t.
func (s *MetadataStore) ControllerMetadata(t reflect.Type) (ControllerMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.controllers[t]
	return meta, ok
}

// AppendRoute adds a route to t in declaration order.
func (s *MetadataStore) AppendRoute(t reflect.Type, route RouteDefinition) {
	route.Path = normalizeRoutePath(route.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[t] = append(s.routes[t], route)
}

// SetRoutes replaces the routes of t.
func (s *MetadataStore) SetRoutes(t reflect.Type, routes []RouteDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[t] = append([]RouteDefinition(nil), routes...)
}

// Routes returns a copy of the routes declared on t, empty when none.
func (s *MetadataStore) Routes(t reflect.Type) []RouteDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RouteDefinition(nil), s.routes[t]...)
}

// Register adds t to the automatic registration list once.
func (s *MetadataStore) Register(t reflect.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.registered {
		if existing == t {
			return
		}
	}
	s.registered = append(s.registered, t)
}

// Registered returns the automatically registered controllers in
// registration order.
func (s *MetadataStore) Registered() []reflect.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]reflect.Type(nil), s.registered...)
}

// SetProvider records how instances of t are built.
func (s *MetadataStore) SetProvider(t reflect.Type, p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[t] = p
}

// Provider returns the provider recorded for t.
func (s *MetadataStore) Provider(t reflect.Type) (Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[t]
	return p, ok
}

// typeKey names a controller type for container bindings and diagnostics.
func typeKey(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		return "*" + typeKey(t.Elem())
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// typeName is the short controller name used in logs and conflict reports.
func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return strings.TrimPrefix(t.String(), "*")
}
