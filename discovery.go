package kick

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"strings"
)

// DiscoveredController is a controller found on disk, ready for the
// registrar.
type DiscoveredController struct {
	Type     reflect.Type
	Factory  Provider
	FilePath string
	Route    string
	Method   Method
	Tags     []string
}

// InspectedRoute is the route a controller file maps to, derived from its
// name alone.
type InspectedRoute struct {
	FilePath string   `json:"filePath"`
	Route    string   `json:"route"`
	Method   Method   `json:"method"`
	Tags     []string `json:"tags"`
}

type discoveryOptions struct {
	store  *MetadataStore
	logger Logger
}

// DiscoveryOption customises DiscoverControllers.
type DiscoveryOption func(*discoveryOptions)

// WithDiscoveryMetadata annotates discovered controllers into store instead
// of DefaultMetadata.
func WithDiscoveryMetadata(store *MetadataStore) DiscoveryOption {
	return func(o *discoveryOptions) { o.store = store }
}

// WithDiscoveryLogger reports skipped files to logger.
func WithDiscoveryLogger(logger Logger) DiscoveryOption {
	return func(o *discoveryOptions) { o.logger = logger }
}

// controllerFile is a file whose name passed the <slug>.<verb> rules.
type controllerFile struct {
	path     string
	dirs     []string
	slug     []string
	method   Method
	relative string
}

// DiscoverControllers walks the configured roots and returns one entry per
// controller file, in sorted walk order. Each controller is annotated into
// the metadata store with a single route bound to its Handle method. A nil
// loader uses DefaultFiles.
func DiscoverControllers(cfg DiscoveryConfig, loader ControllerLoader, opts ...DiscoveryOption) ([]DiscoveredController, error) {
	o := discoveryOptions{store: DefaultMetadata, logger: NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if loader == nil {
		loader = DefaultFiles
	}
	if err := ProcessConfigDefaults(&cfg); err != nil {
		return nil, err
	}
	if !boolValue(cfg.Enabled, true) {
		return nil, nil
	}

	var discovered []DiscoveredController
	seen := make(map[string]string)
	err := walkControllerFiles(cfg, func(f controllerFile) error {
		fc, ok := loader.Lookup(f.path)
		if !ok {
			o.logger.Debug("Skipping controller file without registration", "file", f.relative)
			return nil
		}
		d, err := interpretController(cfg, f, fc)
		if err != nil {
			return err
		}

		key := string(d.Method) + ":" + d.Route
		if existing, dup := seen[key]; dup {
			return NewError(CodeRouteConflict,
				fmt.Sprintf("Duplicate discovered route for [%s] %s", d.Method.HTTP(), d.Route),
				WithDetails(map[string]any{"existing": existing, "duplicate": f.path}))
		}
		seen[key] = f.path

		annotateDiscovered(o.store, d)
		if boolValue(cfg.RegisterGlobally, true) {
			o.store.Register(d.Type)
		}
		discovered = append(discovered, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return discovered, nil
}

// InspectControllers derives routes from file names without loading any
// controller. Static route and tag overrides are not applied.
func InspectControllers(cfg DiscoveryConfig) ([]InspectedRoute, error) {
	if err := ProcessConfigDefaults(&cfg); err != nil {
		return nil, err
	}
	if !boolValue(cfg.Enabled, true) {
		return nil, nil
	}
	var routes []InspectedRoute
	seen := make(map[string]string)
	err := walkControllerFiles(cfg, func(f controllerFile) error {
		route := joinRoute(segmentsOf(cfg.BaseRoute), derivedSegments(f.dirs, f.slug))
		key := string(f.method) + ":" + route
		if existing, dup := seen[key]; dup {
			return NewError(CodeRouteConflict,
				fmt.Sprintf("Duplicate discovered route for [%s] %s", f.method.HTTP(), route),
				WithDetails(map[string]any{"existing": existing, "duplicate": f.path}))
		}
		seen[key] = f.path
		routes = append(routes, InspectedRoute{
			FilePath: f.path,
			Route:    route,
			Method:   f.method,
			Tags:     discoveryTags(nil, f.dirs, boolValue(cfg.TagsFromDirectories, true)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routes, nil
}

func walkControllerFiles(cfg DiscoveryConfig, visit func(controllerFile) error) error {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		baseDir = wd
	}
	for _, root := range cfg.Roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(baseDir, root)
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		if err := walkDir(cfg, root, root, nil, visit); err != nil {
			return err
		}
	}
	return nil
}

func walkDir(cfg DiscoveryConfig, root, dir string, dirs []string, visit func(controllerFile) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("discovery: read %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == "" || strings.HasPrefix(name, ".") || slices.Contains(cfg.Ignore, name) {
			continue
		}
		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if err := walkDir(cfg, root, path, append(slices.Clone(dirs), name), visit); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		f, ok, err := parseControllerFile(cfg, root, path, dirs)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := visit(f); err != nil {
			return err
		}
	}
	return nil
}

// parseControllerFile applies the naming rules to one file. It reports false
// for files that are not controllers, and an error for malformed names when
// structure is enforced.
func parseControllerFile(cfg DiscoveryConfig, root, path string, dirs []string) (controllerFile, bool, error) {
	ext := filepath.Ext(path)
	if !slices.Contains(cfg.Extensions, ext) {
		return controllerFile{}, false, nil
	}
	relative, err := filepath.Rel(root, path)
	if err != nil {
		relative = path
	}
	relative = filepath.ToSlash(relative)

	name := strings.TrimSuffix(filepath.Base(path), ext)
	if cfg.Suffix != "" {
		name = strings.TrimSuffix(name, cfg.Suffix)
	}
	slug, method, ok := slugAndMethod(name, cfg.SegmentSeparator)
	if !ok {
		if boolValue(cfg.EnforceStructure, true) {
			return controllerFile{}, false, NewError(CodeInvalidControllerStructure,
				fmt.Sprintf("Controller file %s must follow <name>.<verb>%s%s", relative, cfg.Suffix, ext),
				WithDetails(map[string]any{"filePath": path}))
		}
		return controllerFile{}, false, nil
	}
	return controllerFile{path: path, dirs: dirs, slug: slug, method: method, relative: relative}, true, nil
}

// slugAndMethod splits "admin.users.get" into its slug segments and verb.
// The verb is the last dot-separated token; an empty slug is "index".
func slugAndMethod(name, separator string) ([]string, Method, bool) {
	name = strings.TrimRight(name, ".")
	idx := strings.LastIndex(name, ".")
	method, ok := ParseMethod(name[idx+1:])
	if !ok || name == "" {
		return nil, "", false
	}
	slugText := ""
	if idx > 0 {
		slugText = name[:idx]
	}
	var slug []string
	for _, s := range splitOutsideBrackets(slugText, separator) {
		if s != "" {
			slug = append(slug, s)
		}
	}
	if len(slug) == 0 {
		slug = []string{"index"}
	}
	return slug, method, true
}

// splitOutsideBrackets splits s on sep, leaving separators inside [..]
// untouched so "docs.[...path]" keeps its catch-all segment.
func splitOutsideBrackets(s, sep string) []string {
	if s == "" {
		return nil
	}
	if sep == "" {
		return []string{s}
	}
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); {
		switch {
		case s[i] == '[':
			depth++
		case s[i] == ']' && depth > 0:
			depth--
		case depth == 0 && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			i += len(sep)
			start = i
			continue
		}
		i++
	}
	return append(parts, s[start:])
}

var dynamicSegment = regexp.MustCompile(`^\[(\.\.\.)?(.+)\]$`)

// routeSegment maps a directory or slug segment to a route segment.
func routeSegment(segment string) string {
	m := dynamicSegment.FindStringSubmatch(segment)
	if m == nil {
		return segment
	}
	if m[1] != "" {
		return ":" + m[2] + "*"
	}
	return ":" + m[2]
}

func derivedSegments(dirs, slug []string) []string {
	var out []string
	for _, d := range dirs {
		if d != "" {
			out = append(out, routeSegment(d))
		}
	}
	for i, s := range slug {
		if s == "index" && i == len(slug)-1 {
			continue
		}
		out = append(out, routeSegment(s))
	}
	return out
}

func segmentsOf(p string) []string {
	return splitPath(p)
}

func joinRoute(parts ...[]string) string {
	var all []string
	for _, p := range parts {
		for _, s := range p {
			if s = strings.TrimSpace(s); s != "" && s != "/" {
				all = append(all, s)
			}
		}
	}
	if len(all) == 0 {
		return "/"
	}
	return "/" + strings.Join(all, "/")
}

var tagSanitizer = regexp.MustCompile(`[^A-Za-z0-9]`)

func discoveryTags(static, dirs []string, fromDirectories bool) []string {
	tags := make([]string, 0, len(static)+len(dirs))
	add := func(tag string) {
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	for _, t := range static {
		add(t)
	}
	if fromDirectories {
		for _, d := range dirs {
			if d != "" {
				add(strings.ToLower(tagSanitizer.ReplaceAllString(d, "-")))
			}
		}
	}
	return tags
}

// newControllerValue returns a zero controller of type t, allocating the
// element for pointer types so methods can be called on it.
func newControllerValue(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.Zero(t).Interface()
}

func interpretController(cfg DiscoveryConfig, f controllerFile, fc FileController) (DiscoveredController, error) {
	sample := newControllerValue(fc.Type)
	name := typeName(fc.Type)

	verb, ok := sample.(MethodProvider)
	if !ok {
		return DiscoveredController{}, NewError(CodeInvalidVerbController,
			fmt.Sprintf("Discovered controller %s must embed a verb controller or implement Method().", name),
			WithDetails(map[string]any{"filePath": f.path}))
	}
	if declared := verb.Method(); declared != f.method {
		return DiscoveredController{}, NewError(CodeVerbMismatch,
			fmt.Sprintf("Controller %s declares %s but file name enforces %s.", name, declared.HTTP(), f.method.HTTP()),
			WithDetails(map[string]any{"filePath": f.path}))
	}
	if _, ok := sample.(RequestHandler); !ok {
		return DiscoveredController{}, NewError(CodeInvalidControllerHandler,
			fmt.Sprintf("Controller %s must implement a Handle method.", name),
			WithDetails(map[string]any{"filePath": f.path}))
	}

	base := segmentsOf(cfg.BaseRoute)
	route := joinRoute(base, derivedSegments(f.dirs, f.slug))
	if sr, ok := sample.(StaticRouter); ok && boolValue(cfg.AllowStaticRoutes, true) {
		if override := sr.StaticRoute(); override != "" {
			if strings.HasPrefix(override, "/") {
				route = joinRoute(segmentsOf(override))
			} else {
				route = joinRoute(base, segmentsOf(override))
			}
		}
	}

	var static []string
	if st, ok := sample.(StaticTagger); ok {
		static = st.StaticTags()
	}

	return DiscoveredController{
		Type:     fc.Type,
		Factory:  fc.Factory,
		FilePath: f.path,
		Route:    route,
		Method:   f.method,
		Tags:     discoveryTags(static, f.dirs, boolValue(cfg.TagsFromDirectories, true)),
	}, nil
}

func annotateDiscovered(store *MetadataStore, d DiscoveredController) {
	store.AnnotateController(d.Type, ControllerMetadata{BasePath: d.Route, Tags: d.Tags})
	store.SetRoutes(d.Type, []RouteDefinition{{
		Method:      d.Method,
		Path:        "",
		HandlerName: "Handle",
		Handler: func(controller any, ctx *Context) (any, error) {
			h, ok := controller.(RequestHandler)
			if !ok {
				return nil, NewError(CodeInvalidControllerHandler,
					fmt.Sprintf("Controller %T must implement a Handle method.", controller))
			}
			return h.Handle(ctx)
		},
	}})
	if d.Factory != nil {
		store.SetProvider(d.Type, d.Factory)
	}
}
