package feeders

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix is the variable prefix used when a feeder is picked by
// file name.
const DefaultEnvPrefix = "KICK"

// DotEnvFeeder reads KEY=VALUE lines from a .env file and applies them the
// same way EnvFeeder applies process variables. The process environment is
// not consulted or modified.
type DotEnvFeeder struct {
	Path   string
	Prefix string
	// Optional skips a missing file instead of failing.
	Optional bool
}

// NewDotEnvFeeder creates a feeder for the .env file at filePath.
func NewDotEnvFeeder(filePath, prefix string) DotEnvFeeder {
	return DotEnvFeeder{Path: filePath, Prefix: prefix}
}

// Feed parses the file and applies its variables to target.
func (d DotEnvFeeder) Feed(target any) error {
	if _, err := structTarget(target); err != nil {
		return err
	}
	vars, err := d.parse()
	if err != nil {
		if d.Optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return EnvFeeder{Prefix: d.Prefix, Lookup: func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}}.Feed(target)
}

func (d DotEnvFeeder) parse() (map[string]string, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .env file %s: %w", d.Path, err)
	}
	defer f.Close()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w at %s:%d: %s", ErrDotEnvInvalidLine, d.Path, lineNum, line)
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		vars[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read .env file %s: %w", d.Path, err)
	}
	return vars, nil
}
