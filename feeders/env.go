package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
)

// EnvFeeder populates config fields from environment variables named after
// their env tags. Nested struct tags are joined with "_" and the whole name is
// prefixed with Prefix, so `env:"LEVEL"` inside `env:"LOGGING"` with prefix
// "KICK" reads KICK_LOGGING_LEVEL. Slices are read as comma-separated lists.
type EnvFeeder struct {
	Prefix string
	// Lookup replaces os.LookupEnv, mainly for tests.
	Lookup func(string) (string, bool)
}

// NewEnvFeeder creates a feeder reading variables that start with prefix.
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix}
}

// Feed applies every set variable to target. Unset variables leave fields
// untouched.
func (e EnvFeeder) Feed(target any) error {
	rv, err := structTarget(target)
	if err != nil {
		return err
	}
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return e.fill(rv, strings.ToUpper(e.Prefix), "", lookup)
}

func (e EnvFeeder) fill(rv reflect.Value, prefix, path string, lookup func(string) (string, bool)) error {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		tag := sf.Tag.Get("env")
		if !field.CanSet() || tag == "-" || tag == "" {
			continue
		}
		name := strings.ToUpper(tag)
		if prefix != "" {
			name = prefix + "_" + name
		}
		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := e.fill(field, name, fieldPath, lookup); err != nil {
				return err
			}
			continue
		}

		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := assignString(field, value, fieldPath); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
	}
	return nil
}
