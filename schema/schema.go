// Package schema adapts JSON Schema documents to route validation. A compiled
// Schema satisfies the Parser shape accepted by kick.WithValidation, and its
// failures report one issue per violated keyword.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/GoCodeAlone/kick/internal/jsoncodec"
)

var printer = message.NewPrinter(language.English)

var resourceSeq atomic.Uint64

// Schema is a compiled JSON Schema.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile compiles a schema given as JSON text ([]byte or string) or as a
// decoded document such as map[string]any.
func Compile(doc any) (*Schema, error) {
	var data []byte
	switch d := doc.(type) {
	case []byte:
		data = d
	case string:
		data = []byte(d)
	default:
		encoded, err := jsoncodec.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema: %w", err)
		}
		data = encoded
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	url := fmt.Sprintf("mem://kick/schema-%d.json", resourceSeq.Add(1))
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile that panics on error, for package-level schemas.
func MustCompile(doc any) *Schema {
	s, err := Compile(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks value against the schema.
func (s *Schema) Validate(value any) error {
	if err := s.compiled.Validate(normalize(value)); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &Error{issues: issues(verr)}
		}
		return &Error{issues: []string{err.Error()}}
	}
	return nil
}

// Parse validates value and returns it unchanged on success.
func (s *Schema) Parse(value any) (any, error) {
	if err := s.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// Typed validates with s and then decodes the value into T, so handlers
// read a struct from Context.Params, Query or Body.
type Typed[T any] struct {
	Schema *Schema
}

// As wraps s so successful validation yields a T.
func As[T any](s *Schema) Typed[T] {
	return Typed[T]{Schema: s}
}

func (t Typed[T]) Parse(value any) (any, error) {
	if err := t.Schema.Validate(value); err != nil {
		return nil, err
	}
	var out T
	if err := jsoncodec.Convert(value, &out); err != nil {
		return nil, &Error{issues: []string{err.Error()}}
	}
	return out, nil
}

// Error is a failed validation. Issues lists one message per violation,
// prefixed with the instance location when it is not the root.
type Error struct {
	issues []string
}

func (e *Error) Error() string {
	return "schema validation failed: " + strings.Join(e.issues, "; ")
}

// Issues returns the individual violations.
func (e *Error) Issues() []string {
	return append([]string(nil), e.issues...)
}

func issues(verr *jsonschema.ValidationError) []string {
	var out []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			msg := e.ErrorKind.LocalizedString(printer)
			if loc := "/" + strings.Join(e.InstanceLocation, "/"); loc != "/" {
				msg = loc + ": " + msg
			}
			out = append(out, msg)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return out
}

// normalize round-trips typed Go values through JSON so structs and typed
// maps validate like decoded documents.
func normalize(value any) any {
	switch value.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return value
	}
	data, err := jsoncodec.Marshal(value)
	if err != nil {
		return value
	}
	out, err := jsoncodec.DecodeValue(data)
	if err != nil {
		return value
	}
	return out
}
