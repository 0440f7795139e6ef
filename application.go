package kick

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/kick/reactive"
)

// App state store identity and keys.
const (
	AppStateID    = "app:state"
	AppStateLabel = "application:state"

	StateBootedAt         = "bootedAt"
	StateMetadata         = "metadata"
	StateIsInitialized    = "isInitialized"
	StateModulesCount     = "modulesCount"
	StateControllersCount = "controllersCount"
	StateRoutesCount      = "routesCount"
	StateRoutePrefix      = "routePrefix"
)

// AppStats summarises a constructed application.
type AppStats struct {
	Initialized bool      `json:"initialized"`
	BootedAt    time.Time `json:"bootedAt"`
	Modules     int       `json:"modules"`
	Controllers int       `json:"controllers"`
	Routes      int       `json:"routes"`
	Middlewares int       `json:"middlewares"`
	Prefix      string    `json:"prefix"`
	Stores      int       `json:"stores"`
}

// App is a constructed application: a chi router with every controller
// mounted, plus the services that track and describe it.
type App struct {
	config      AppConfig
	router      *chi.Mux
	container   *Container
	metadata    *MetadataStore
	logger      Logger
	events      *EventSubject
	registry    *reactive.Registry
	tracker     *RequestTracker
	diagnostics *Diagnostics
	metrics     *Metrics
	janitor     *Janitor
	registrar   *Registrar
	state       *reactive.Store

	modules     []Module
	middlewares []GlobalMiddleware
	controllers []reflect.Type
	discovered  []DiscoveredController
	builtins    []RouteInfo

	mu      sync.Mutex
	server  *http.Server
	addr    net.Addr
	started bool
	done    chan struct{}
}

// CreateApp builds an application. Discovery, module installation and
// route registration all happen here; any error leaves nothing mounted for
// the caller to use.
func CreateApp(opts Options) (*App, error) {
	ctx := context.Background()

	cfg, err := ResolveConfig(opts.Config)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		l, err := NewLogger(cfg.Logging, out)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	a := &App{
		config:    cfg,
		router:    chi.NewRouter(),
		container: opts.Container,
		metadata:  opts.Metadata,
		logger:    logger,
		registry:  reactive.NewRegistry(),
		modules:   opts.Modules,
	}
	if a.container == nil {
		a.container = NewContainer()
	}
	if a.metadata == nil {
		a.metadata = DefaultMetadata
	}

	a.events = NewEventSubject("kick", logger, opts.SynchronousEvents)
	for _, obs := range opts.Observers {
		if err := a.events.RegisterObserver(obs); err != nil {
			return nil, err
		}
	}

	a.tracker = NewRequestTracker(a.registry, logger, cfg.Telemetry)
	a.tracker.events = a.events
	a.diagnostics = NewDiagnostics(a.registry, cfg)
	a.metrics = NewMetrics(a.registry.Len)
	a.janitor = NewJanitor(a.registry, cfg.Telemetry, logger)
	a.state = a.newStateStore()
	a.registrar = NewRegistrar(a.router, a.container,
		WithRegistrarMetadata(a.metadata),
		WithRegistrarLogger(logger),
		WithRegistrarEvents(a.events),
		WithRoutePrefix(cfg.Prefix))

	a.bindServices()
	a.events.emit(ctx, EventTypeAppCreated, map[string]any{"prefix": cfg.Prefix})

	if opts.ConfigureContainer != nil {
		if err := opts.ConfigureContainer(a.container); err != nil {
			return nil, fmt.Errorf("configure container: %w", err)
		}
	}

	if err := a.loadModules(ctx); err != nil {
		return nil, err
	}

	a.discovered, err = DiscoverControllers(cfg.API.Discovery, opts.Loader,
		WithDiscoveryMetadata(a.metadata),
		WithDiscoveryLogger(logger))
	if err != nil {
		return nil, err
	}
	a.controllers = a.collectControllers(opts.Controllers)

	a.mountMiddlewares(ctx, opts.Middlewares)
	if err := a.mountBuiltins(); err != nil {
		return nil, err
	}
	if err := a.registrar.RegisterControllers(ctx, a.controllers); err != nil {
		return nil, err
	}
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, r, NewError(CodeNotFound, fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path),
			WithStatus(http.StatusNotFound)))
	})
	a.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, r, NewError(CodeMethodNotAllowed, fmt.Sprintf("Method %s not allowed on %s", r.Method, r.URL.Path),
			WithStatus(http.StatusMethodNotAllowed)))
	})

	a.state.Set(StateControllersCount, len(a.controllers))
	a.state.Set(StateRoutesCount, len(a.registrar.Routes()))
	a.state.Set(StateIsInitialized, true)

	stats := a.Stats()
	logger.Info("Application initialized",
		"controllers", stats.Controllers, "routes", stats.Routes, "modules", stats.Modules, "prefix", stats.Prefix)
	a.events.emit(ctx, EventTypeAppInitialized, map[string]any{
		"controllers": stats.Controllers,
		"routes":      stats.Routes,
		"modules":     stats.Modules,
		"middlewares": stats.Middlewares,
	})
	return a, nil
}

func (a *App) newStateStore() *reactive.Store {
	store := reactive.New(map[string]any{
		StateBootedAt:         time.Now(),
		StateMetadata:         map[string]any{},
		StateIsInitialized:    false,
		StateModulesCount:     0,
		StateControllersCount: 0,
		StateRoutesCount:      0,
		StateRoutePrefix:      a.config.Prefix,
	},
		reactive.WithID(AppStateID),
		reactive.WithLabel(AppStateLabel),
		reactive.WithRegistry(a.registry),
		reactive.WithHistory(a.config.Telemetry.HistoryEnabled()),
	)
	store.Watch(func(_ map[string]any, change reactive.Change) {
		a.events.emit(context.Background(), EventTypeStateChanged, map[string]any{
			"key":      change.Property,
			"value":    change.Value,
			"previous": change.Previous,
		})
	})
	return store
}

// bindServices exposes the framework services to controllers and providers.
// They replace any earlier binding under the same keys.
func (a *App) bindServices() {
	a.container.Rebind(ServiceConfig, a.config)
	a.container.Rebind(ServiceLogger, a.logger)
	a.container.Rebind(ServiceTracker, a.tracker)
	a.container.Rebind(ServiceDiagnostics, a.diagnostics)
	a.container.Rebind(ServiceStateRegistry, a.registry)
	a.container.Rebind(ServiceAppState, a.state)
	a.container.Rebind(ServiceEvents, a.events)
	a.container.Rebind(ServiceMetadata, a.metadata)
}

func (a *App) loadModules(ctx context.Context) error {
	for _, m := range a.modules {
		a.logger.Info("Loading module", "module", m.Name())
		if err := m.Install(a.container); err != nil {
			return fmt.Errorf("install module %s: %w", m.Name(), err)
		}
		a.events.emit(ctx, EventTypeModuleLoaded, map[string]any{"module": m.Name()})
	}
	a.state.Set(StateModulesCount, len(a.modules))
	return nil
}

// collectControllers merges explicit, module and discovered controllers,
// falling back to the metadata registry when nothing is listed explicitly.
func (a *App) collectControllers(explicit []ControllerRef) []reflect.Type {
	var listed []reflect.Type
	for _, ref := range explicit {
		if ref != nil && ref.ControllerType() != nil {
			listed = append(listed, ref.ControllerType())
		}
	}
	for _, v := range a.container.Group(GroupControllers) {
		if t, ok := v.(reflect.Type); ok {
			listed = append(listed, t)
		}
	}
	if len(listed) == 0 {
		listed = a.metadata.Registered()
	}
	for _, d := range a.discovered {
		listed = append(listed, d.Type)
	}

	out := make([]reflect.Type, 0, len(listed))
	seen := make(map[reflect.Type]bool, len(listed))
	for _, t := range listed {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// mountMiddlewares installs the request pipeline shared by every route:
// trailing-slash handling, metrics, request tracking, panic recovery and
// the global middleware.
func (a *App) mountMiddlewares(ctx context.Context, extra []GlobalMiddleware) {
	a.router.Use(middleware.StripSlashes)
	a.router.Use(a.metrics.Middleware())
	a.router.Use(a.tracker.Middleware())
	a.router.Use(recoverMiddleware)

	all := append(append([]GlobalMiddleware(nil), extra...), middlewaresFromGroup(a.container)...)
	a.middlewares = sortMiddlewares(all)
	for _, mw := range a.middlewares {
		a.router.Use(mw.Handler)
		a.logger.Debug("Registered middleware", "name", mw.Name, "priority", mw.Priority)
		a.events.emit(ctx, EventTypeMiddlewareRegistered, map[string]any{
			"name":     mw.Name,
			"priority": mw.Priority,
			"tags":     mw.Tags,
		})
	}
}

// mountBuiltins mounts the health, diagnostics and metrics endpoints. They
// claim their routes first, so a controller on the same route conflicts.
func (a *App) mountBuiltins() error {
	type builtin struct {
		path    string
		name    string
		handler http.Handler
	}
	var endpoints []builtin
	if a.config.HealthEnabled() {
		endpoints = append(endpoints, builtin{a.config.HealthEndpoint, "Health", http.HandlerFunc(healthHandler)})
	}
	if a.config.Diagnostics.Endpoint != "" {
		endpoints = append(endpoints, builtin{a.config.Diagnostics.Endpoint, "Diagnostics", a.diagnostics.Handler()})
	}
	if a.config.Metrics.Endpoint != "" {
		endpoints = append(endpoints, builtin{a.config.Metrics.Endpoint, "Metrics", a.metrics.Handler()})
	}
	for _, e := range endpoints {
		path := BuildRoutePath(e.path)
		hash, err := a.registrar.ClaimRoute(MethodGet, path, "kick."+e.name)
		if err != nil {
			return err
		}
		a.router.Method(http.MethodGet, path, e.handler)
		a.builtins = append(a.builtins, RouteInfo{
			Method:     http.MethodGet,
			Path:       path,
			Pattern:    path,
			Controller: "kick",
			Handler:    e.name,
			Hash:       hash,
		})
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeHTTP dispatches a request through the application router.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Router returns the underlying chi router.
func (a *App) Router() chi.Router { return a.router }

// Config returns the resolved configuration.
func (a *App) Config() AppConfig { return a.config }

// Container returns the application container.
func (a *App) Container() *Container { return a.container }

// Logger returns the application logger.
func (a *App) Logger() Logger { return a.logger }

// Events returns the subject framework events are emitted on.
func (a *App) Events() *EventSubject { return a.events }

// Tracker returns the request tracker.
func (a *App) Tracker() *RequestTracker { return a.tracker }

// Diagnostics returns the diagnostics view.
func (a *App) Diagnostics() *Diagnostics { return a.diagnostics }

// Metrics returns the Prometheus collectors.
func (a *App) Metrics() *Metrics { return a.metrics }

// Janitor returns the request store janitor started by Run.
func (a *App) Janitor() *Janitor { return a.janitor }

// State returns the application state store.
func (a *App) State() *reactive.Store { return a.state }

// Discovered lists the controllers found on disk.
func (a *App) Discovered() []DiscoveredController {
	return append([]DiscoveredController(nil), a.discovered...)
}

// Routes lists framework endpoints followed by controller routes.
func (a *App) Routes() []RouteInfo {
	return append(append([]RouteInfo(nil), a.builtins...), a.registrar.Routes()...)
}

// Stats summarises the application.
func (a *App) Stats() AppStats {
	snap := a.state.Snapshot()
	stats := AppStats{
		Middlewares: len(a.middlewares),
		Prefix:      a.config.Prefix,
		Stores:      a.registry.Len(),
	}
	stats.Initialized, _ = snap[StateIsInitialized].(bool)
	stats.BootedAt, _ = snap[StateBootedAt].(time.Time)
	stats.Modules, _ = snap[StateModulesCount].(int)
	stats.Controllers, _ = snap[StateControllersCount].(int)
	stats.Routes, _ = snap[StateRoutesCount].(int)
	return stats
}

// SetMetadata merges patch into the application state metadata.
func (a *App) SetMetadata(patch map[string]any) {
	a.state.Update(StateMetadata, func(current any, _ bool) any {
		return mergeMaps(current, patch)
	})
}
