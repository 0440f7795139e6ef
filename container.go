package kick

import (
	"fmt"
	"reflect"
	"sync"
)

// Service keys bound by CreateApp.
const (
	ServiceConfig        = "kick.config"
	ServiceLogger        = "kick.logger"
	ServiceTracker       = "kick.tracker"
	ServiceDiagnostics   = "kick.diagnostics"
	ServiceStateRegistry = "kick.state.registry"
	ServiceAppState      = "kick.state.app"
	ServiceEvents        = "kick.events"
	ServiceMetadata      = "kick.metadata"

	// GroupControllers and GroupMiddlewares hold multi-bindings contributed
	// by modules.
	GroupControllers = "kick.controllers"
	GroupMiddlewares = "kick.middlewares"
)

const tagInject = "inject"

// Provider builds a service from the container.
type Provider func(c *Container) (any, error)

type binding struct {
	provider  Provider
	instance  any
	resolved  bool
	resolving bool
}

// Container is a small dependency container of named singletons. Providers run
// once on first resolution. Resolution is expected to happen while the
// application is being constructed; concurrent first resolution of the same
// key reports a circular dependency.
type Container struct {
	mu       sync.Mutex
	bindings map[string]*binding
	groups   map[string][]any
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		bindings: make(map[string]*binding),
		groups:   make(map[string][]any),
	}
}

// BindInstance binds an already constructed value under key.
func (c *Container) BindInstance(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.bindings[key]; exists {
		return fmt.Errorf("%w: %s", ErrBindingExists, key)
	}
	c.bindings[key] = &binding{instance: value, resolved: true}
	return nil
}

// BindSingleton binds a provider under key. The provider runs at most once.
func (c *Container) BindSingleton(key string, provider Provider) error {
	if provider == nil {
		return fmt.Errorf("%w: %s", ErrProviderNil, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.bindings[key]; exists {
		return fmt.Errorf("%w: %s", ErrBindingExists, key)
	}
	c.bindings[key] = &binding{provider: provider}
	return nil
}

// Rebind replaces any existing binding for key with value.
func (c *Container) Rebind(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[key] = &binding{instance: value, resolved: true}
}

// IsBound reports whether key has a binding.
func (c *Container) IsBound(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bindings[key]
	return ok
}

// Resolve returns the singleton bound under key, running its provider on
// first use.
func (c *Container) Resolve(key string) (any, error) {
	c.mu.Lock()
	b, ok := c.bindings[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBindingNotFound, key)
	}
	if b.resolved {
		c.mu.Unlock()
		return b.instance, nil
	}
	if b.resolving {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency, key)
	}
	b.resolving = true
	c.mu.Unlock()

	instance, err := b.provider(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	b.resolving = false
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}
	b.instance = instance
	b.resolved = true
	return instance, nil
}

// ResolveInto resolves key and assigns it to target, which must be a non-nil
// pointer. Interfaces, struct fields of an implemented interface type, direct
// assignment and pointer dereference are supported.
func (c *Container) ResolveInto(key string, target any) error {
	service, err := c.Resolve(key)
	if err != nil {
		return err
	}
	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Pointer || targetValue.IsNil() {
		return ErrTargetNotPointer
	}
	return assignService(key, service, targetValue.Elem())
}

func assignService(key string, service any, target reflect.Value) error {
	if service == nil {
		return fmt.Errorf("%w: service '%s' is nil", ErrServiceIncompatible, key)
	}
	serviceType := reflect.TypeOf(service)
	targetType := target.Type()

	if targetType.Kind() == reflect.Interface && serviceType.Implements(targetType) {
		target.Set(reflect.ValueOf(service))
		return nil
	}
	if serviceType.AssignableTo(targetType) {
		target.Set(reflect.ValueOf(service))
		return nil
	}
	if serviceType.Kind() == reflect.Pointer && serviceType.Elem().AssignableTo(targetType) {
		target.Set(reflect.ValueOf(service).Elem())
		return nil
	}
	if targetType.Kind() == reflect.Struct {
		for i := 0; i < targetType.NumField(); i++ {
			field := targetType.Field(i)
			if field.Type.Kind() == reflect.Interface && serviceType.Implements(field.Type) && target.Field(i).CanSet() {
				target.Field(i).Set(reflect.ValueOf(service))
				return nil
			}
		}
	}
	return fmt.Errorf("%w: service '%s' of type %s cannot be assigned to %s",
		ErrServiceIncompatible, key, serviceType, targetType)
}

// Resolve is the typed form of Container.Resolve.
func Resolve[T any](c *Container, key string) (T, error) {
	var zero T
	service, err := c.Resolve(key)
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("%w: service '%s' of type %T is not %T", ErrServiceIncompatible, key, service, zero)
	}
	return typed, nil
}

// AddToGroup appends value to the multi-binding group. Values already present
// in the group are ignored.
func (c *Container) AddToGroup(group string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.groups[group] {
		if sameGroupMember(existing, value) {
			return
		}
	}
	c.groups[group] = append(c.groups[group], value)
}

func sameGroupMember(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil {
		return false
	}
	if !ta.Comparable() {
		return false
	}
	return a == b
}

// Group returns the members of a multi-binding group in insertion order.
func (c *Container) Group(group string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.groups[group]))
	copy(out, c.groups[group])
	return out
}

// Inject fills exported fields tagged `inject:"key"` on the struct pointed to
// by target.
func (c *Container) Inject(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrTargetNotPointer
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return nil
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		key, ok := rt.Field(i).Tag.Lookup(tagInject)
		if !ok || key == "" || !rv.Field(i).CanSet() {
			continue
		}
		service, err := c.Resolve(key)
		if err != nil {
			return fmt.Errorf("injecting %s.%s: %w", rt.Name(), rt.Field(i).Name, err)
		}
		if err := assignService(key, service, rv.Field(i)); err != nil {
			return fmt.Errorf("injecting %s.%s: %w", rt.Name(), rt.Field(i).Name, err)
		}
	}
	return nil
}
