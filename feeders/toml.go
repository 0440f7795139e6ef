package feeders

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlFeeder reads a TOML file into a config struct using its toml tags.
type TomlFeeder struct {
	Path     string
	Optional bool
}

func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed decodes the file into target. Keys without a matching field are
// rejected so typos in config files surface early.
func (t TomlFeeder) Feed(target any) error {
	if _, err := structTarget(target); err != nil {
		return err
	}
	meta, err := toml.DecodeFile(t.Path, target)
	if err != nil {
		if t.Optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to decode TOML file %s: %w", t.Path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown TOML keys %v in %s", ErrCannotConvert, undecoded, t.Path)
	}
	return nil
}
