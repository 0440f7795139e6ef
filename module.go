// Package kick is a controller and route framework on top of chi.
//
// Controllers are declared with Controller[T] or discovered from the file
// system, resolved through a small dependency container and mounted by a
// Registrar. Every request gets a reactive store that records logs,
// metadata, responses and errors, and Diagnostics exposes those stores
// read-only.
//
// Basic usage:
//
//	var _ = kick.Controller[*UsersController]("/users").
//		Get("/:id", (*UsersController).Show)
//
//	app, err := kick.CreateApp(kick.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	log.Fatal(app.Run(ctx))
package kick

import (
	"fmt"
	"reflect"
)

// Module is an installable bundle of controllers and global middleware.
//
// Modules are installed into the application container before controllers
// are mapped, so their controllers and middleware take part in the same
// registration pass as everything else.
type Module interface {
	// Name identifies the module in logs and events.
	Name() string

	// Install contributes the module's bindings to c.
	Install(c *Container) error
}

// ModuleOptions lists what a module contributes.
type ModuleOptions struct {
	Controllers []ControllerRef
	Middlewares []GlobalMiddleware
}

type module struct {
	name string
	opts ModuleOptions
}

// NewModule creates a module. Controllers listed more than once are
// installed once.
func NewModule(name string, opts ModuleOptions) Module {
	return &module{name: name, opts: opts}
}

func (m *module) Name() string { return m.name }

func (m *module) Install(c *Container) error {
	seen := make(map[reflect.Type]bool, len(m.opts.Controllers))
	for _, ref := range m.opts.Controllers {
		if ref == nil || ref.ControllerType() == nil {
			return fmt.Errorf("module %s: %w", m.name, ErrControllerNotFound)
		}
		t := ref.ControllerType()
		if seen[t] {
			continue
		}
		seen[t] = true
		c.AddToGroup(GroupControllers, t)
	}
	for _, mw := range m.opts.Middlewares {
		if mw.Handler == nil {
			return fmt.Errorf("module %s: middleware %q: %w", m.name, mw.Name, ErrHandlerNil)
		}
		c.AddToGroup(GroupMiddlewares, mw)
	}
	return nil
}
