package feeders

import (
	"errors"
	"fmt"
	"os"

	"github.com/GoCodeAlone/kick/internal/jsoncodec"
)

// JSONFeeder reads a JSON file into a config struct using its json tags.
// Values are mapped field by field, so durations may be written as strings
// such as "10m".
type JSONFeeder struct {
	Path     string
	Optional bool
}

// NewJSONFeeder creates a feeder for the JSON file at filePath.
func NewJSONFeeder(filePath string) *JSONFeeder {
	return &JSONFeeder{Path: filePath}
}

// Feed reads the JSON file and populates target.
func (j *JSONFeeder) Feed(target any) error {
	rv, err := structTarget(target)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(j.Path)
	if err != nil {
		if j.Optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read JSON file %s: %w", j.Path, err)
	}

	var jsonData map[string]any
	if err := jsoncodec.Unmarshal(data, &jsonData); err != nil {
		return fmt.Errorf("failed to parse JSON file %s: %w", j.Path, err)
	}
	if err := assignStruct(rv, jsonData, "json", ""); err != nil {
		return fmt.Errorf("json feed error: %w", err)
	}
	return nil
}
