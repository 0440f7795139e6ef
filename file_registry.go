package kick

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"sync"
)

// FileController is what a controller source file contributes to discovery:
// the controller type and, optionally, how to build it.
type FileController struct {
	Type    reflect.Type
	Factory Provider
}

// ControllerLoader resolves a discovered source file to its controller.
// Go cannot load code from a path at runtime, so controller files register
// themselves with a loader when their package is linked in.
type ControllerLoader interface {
	Lookup(path string) (FileController, bool)
}

// FileRegistry maps absolute source file paths to controllers. It
// implements ControllerLoader and is safe for concurrent use.
type FileRegistry struct {
	mu    sync.RWMutex
	files map[string]FileController
}

// NewFileRegistry creates an empty registry.
func NewFileRegistry() *FileRegistry {
	return &FileRegistry{files: make(map[string]FileController)}
}

// DefaultFiles is the loader used when discovery is not given one.
var DefaultFiles = NewFileRegistry()

// Register records the controller for path. A later registration for the
// same path replaces the earlier one.
func (r *FileRegistry) Register(path string, fc FileController) error {
	if fc.Type == nil {
		return fmt.Errorf("register %s: %w", path, ErrControllerNotFound)
	}
	key, err := fileKey(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[key] = fc
	return nil
}

// Lookup implements ControllerLoader.
func (r *FileRegistry) Lookup(path string) (FileController, bool) {
	key, err := fileKey(path)
	if err != nil {
		return FileController{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fc, ok := r.files[key]
	return fc, ok
}

// Paths lists the registered files, sorted.
func (r *FileRegistry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Reset drops every registration.
func (r *FileRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = make(map[string]FileController)
}

func fileKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve controller file %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

func fileController[T any](factory func(*Container) (T, error)) FileController {
	fc := FileController{Type: reflect.TypeOf((*T)(nil)).Elem()}
	if factory != nil {
		fc.Factory = func(c *Container) (any, error) { return factory(c) }
	}
	return fc
}

// RegisterFile registers controller T for the source file at path in
// DefaultFiles. A nil factory means zero-value construction.
func RegisterFile[T any](path string, factory func(*Container) (T, error)) error {
	return DefaultFiles.Register(path, fileController(factory))
}

// RegisterHere registers controller T for the caller's own source file, so a
// controller file can declare itself:
//
//	// src/http/users.get.controller.go
//	var _ = kick.RegisterHere[*UsersGet](nil)
func RegisterHere[T any](factory func(*Container) (T, error)) error {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("register controller %s: caller file unavailable", reflect.TypeOf((*T)(nil)).Elem())
	}
	return DefaultFiles.Register(file, fileController(factory))
}
