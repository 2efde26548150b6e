package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/bambu-relay/internal/hms"
)

// errorTableFile is the on-disk layout of an HMS table override:
//
//	[[entry]]
//	codes = ["0300-801E"]
//	description = "The extruder motor is overloaded."
type errorTableFile struct {
	Entries []hms.Entry `toml:"entry"`
}

// LoadErrorTable reads an ordered HMS table from a TOML file. Entries keep
// file order, so the first matching entry wins at lookup time.
func LoadErrorTable(path string) ([]hms.Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f errorTableFile
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, e := range f.Entries {
		if len(e.Codes) == 0 {
			return nil, fmt.Errorf("%s: entry %d has no codes", path, i+1)
		}
		if e.Description == "" {
			return nil, fmt.Errorf("%s: entry %d has no description", path, i+1)
		}
	}
	return f.Entries, nil
}

// Classifier builds the error classifier described by the [errors]
// section: the built-in table unless table_file overrides it.
func (e ErrorsConfig) Classifier() (*hms.Classifier, error) {
	table := hms.DefaultTable()
	if e.TableFile != "" {
		t, err := LoadErrorTable(e.TableFile)
		if err != nil {
			return nil, fmt.Errorf("load error table: %w", err)
		}
		table = t
	}
	return hms.New(table, e.Ignored), nil
}
