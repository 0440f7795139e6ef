package feeders

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// YamlFeeder reads a YAML file into a config struct using its yaml tags.
type YamlFeeder struct {
	Path string
	// Optional skips a missing file instead of failing.
	Optional bool
}

// NewYamlFeeder creates a feeder for the YAML file at filePath.
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{Path: filePath}
}

// Feed decodes the file into target.
func (y YamlFeeder) Feed(target any) error {
	if _, err := structTarget(target); err != nil {
		return err
	}
	f, err := os.Open(y.Path)
	if err != nil {
		if y.Optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open YAML file %s: %w", y.Path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML file %s: %w", y.Path, err)
	}
	return nil
}
