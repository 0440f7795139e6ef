package kick

import (
	"errors"
	"net/http"
)

// ValidationTarget names the request part a schema applies to.
type ValidationTarget string

const (
	TargetParams ValidationTarget = "params"
	TargetQuery  ValidationTarget = "query"
	TargetBody   ValidationTarget = "body"
)

// validationOrder is the fixed order targets are checked in.
var validationOrder = []ValidationTarget{TargetParams, TargetQuery, TargetBody}

// Validation holds optional schemas per request part. A schema must satisfy
// SafeParser, Parser or Validator.
type Validation struct {
	Params any
	Query  any
	Body   any
}

func (v Validation) schema(target ValidationTarget) any {
	switch target {
	case TargetParams:
		return v.Params
	case TargetQuery:
		return v.Query
	case TargetBody:
		return v.Body
	}
	return nil
}

// SafeParseResult is returned by SafeParser schemas.
type SafeParseResult struct {
	Success bool
	Data    any
	Error   error
}

// SafeParser validates without returning an error on failure.
type SafeParser interface {
	SafeParse(value any) SafeParseResult
}

// Parser returns the parsed value or an error.
type Parser interface {
	Parse(value any) (any, error)
}

// ValidateOptions are passed to Validator schemas.
type ValidateOptions struct {
	AbortEarly   bool
	StripUnknown bool
}

// Validator validates with options and returns the cleaned value.
type Validator interface {
	Validate(value any, opts ValidateOptions) (any, error)
}

// IssueReporter is implemented by validation errors that carry one message
// per failed rule.
type IssueReporter interface {
	Issues() []string
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(value any) (any, error)

func (f ParserFunc) Parse(value any) (any, error) { return f(value) }

func supportedSchema(schema any) bool {
	switch schema.(type) {
	case SafeParser, Parser, Validator:
		return true
	}
	return false
}

func unsupportedSchemaError(target ValidationTarget) *Error {
	return NewError(CodeValidationUnsupported, "Unsupported validation schema provided",
		WithDetails(map[string]any{"target": string(target)}))
}

// checkValidation rejects schemas of an unsupported shape.
func checkValidation(v *Validation) error {
	if v == nil {
		return nil
	}
	for _, target := range validationOrder {
		if schema := v.schema(target); schema != nil && !supportedSchema(schema) {
			return unsupportedSchemaError(target)
		}
	}
	return nil
}

// runSchema validates value and returns the possibly transformed result.
func runSchema(schema any, value any, target ValidationTarget) (any, error) {
	switch s := schema.(type) {
	case SafeParser:
		result := s.SafeParse(value)
		if !result.Success {
			return nil, validationError(target, issuesOf(result.Error))
		}
		return result.Data, nil
	case Parser:
		out, err := s.Parse(value)
		if err != nil {
			return nil, validationError(target, issuesOf(err))
		}
		return out, nil
	case Validator:
		out, err := s.Validate(value, ValidateOptions{AbortEarly: false, StripUnknown: true})
		if err != nil {
			return nil, validationError(target, issuesOf(err))
		}
		return out, nil
	}
	return nil, unsupportedSchemaError(target)
}

func validationError(target ValidationTarget, issues []string) *Error {
	return NewError(CodeValidationError, "Invalid "+string(target),
		WithStatus(http.StatusBadRequest),
		WithDetails(map[string]any{
			"target": string(target),
			"issues": issues,
		}))
}

func issuesOf(err error) []string {
	if err == nil {
		return []string{}
	}
	var reporter IssueReporter
	if errors.As(err, &reporter) {
		var out []string
		for _, issue := range reporter.Issues() {
			if issue != "" {
				out = append(out, issue)
			}
		}
		if out == nil {
			out = []string{}
		}
		return out
	}
	return []string{err.Error()}
}

// validationMiddleware checks params, query and body in that order and stops
// at the first failure.
func validationMiddleware(v *Validation) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := contextFrom(r)
			for _, target := range validationOrder {
				schema := v.schema(target)
				if schema == nil {
					continue
				}
				raw, err := c.rawInput(target)
				if err != nil {
					HandleError(w, r, err)
					return
				}
				out, err := runSchema(schema, raw, target)
				if err != nil {
					HandleError(w, r, err)
					return
				}
				c.setValidated(target, out)
			}
			next.ServeHTTP(w, r)
		})
	}
}
