package feeders

import (
	"errors"
	"fmt"
)

// Feeder errors
var (
	ErrTargetNotStruct     = errors.New("expected pointer to struct")
	ErrExpectedMap         = errors.New("expected map for struct field")
	ErrExpectedArray       = errors.New("expected array for slice field")
	ErrCannotConvert       = errors.New("cannot convert value to field type")
	ErrUnsupportedFileType = errors.New("unsupported config file type")
	ErrDotEnvInvalidLine   = errors.New("invalid .env line, expected KEY=VALUE")
)

func wrapMapError(fieldPath string, got any) error {
	return fmt.Errorf("%w %s, got %T", ErrExpectedMap, fieldPath, got)
}

func wrapArrayError(fieldPath string, got any) error {
	return fmt.Errorf("%w %s, got %T", ErrExpectedArray, fieldPath, got)
}

func wrapConvertError(value any, fieldPath string, cause error) error {
	return fmt.Errorf("%w: %v for %s: %w", ErrCannotConvert, value, fieldPath, cause)
}
