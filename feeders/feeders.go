// Package feeders provides configuration feeders that populate config structs
// from YAML, TOML, JSON and .env files and from environment variables.
package feeders

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
)

// Feeder populates a pointer to a config struct.
type Feeder interface {
	Feed(target any) error
}

// ForFile returns the file feeder matching the extension of path.
func ForFile(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	case ".json":
		return NewJSONFeeder(path), nil
	case ".env":
		return NewDotEnvFeeder(path, DefaultEnvPrefix), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, path)
}

func structTarget(target any) (reflect.Value, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w, got %T", ErrTargetNotStruct, target)
	}
	return rv.Elem(), nil
}
