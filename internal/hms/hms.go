// Package hms classifies printer error codes (Bambu "HMS" codes) into
// human-readable descriptions. The lookup table is ordered and scanned
// front to back; the first entry whose code set contains the code wins.
package hms

import (
	"fmt"
	"strings"
)

// NoError is the code a printer reports when nothing is wrong.
const NoError = "0"

// Entry maps a set of raw codes to one description.
type Entry struct {
	Codes       []string `toml:"codes"       json:"codes"`
	Description string   `toml:"description" json:"description"`
}

// Classifier answers Classify and IsIgnored against immutable data
// captured at construction time. It is safe for concurrent use.
type Classifier struct {
	entries []entry
	ignored map[string]struct{}
}

type entry struct {
	codes       map[string]struct{}
	description string
}

// New builds a Classifier from an ordered table and a list of codes that
// must never produce a notification. NoError is always ignored.
// Codes are compared case-insensitively.
func New(table []Entry, ignored []string) *Classifier {
	c := &Classifier{
		entries: make([]entry, 0, len(table)),
		ignored: map[string]struct{}{NoError: {}},
	}
	for _, e := range table {
		set := make(map[string]struct{}, len(e.Codes))
		for _, code := range e.Codes {
			set[fold(code)] = struct{}{}
		}
		c.entries = append(c.entries, entry{codes: set, description: e.Description})
	}
	for _, code := range ignored {
		c.ignored[fold(code)] = struct{}{}
	}
	return c
}

// Default returns a Classifier over the built-in table and ignore list.
func Default() *Classifier {
	return New(DefaultTable(), DefaultIgnored())
}

// Classify returns the description of the first table entry containing
// code, or a fallback that embeds the raw code.
func (c *Classifier) Classify(code string) string {
	if d, ok := c.Lookup(code); ok {
		return d
	}
	return Unknown(code)
}

// Lookup is Classify without the fallback.
func (c *Classifier) Lookup(code string) (string, bool) {
	key := fold(code)
	for _, e := range c.entries {
		if _, ok := e.codes[key]; ok {
			return e.description, true
		}
	}
	return "", false
}

// IsIgnored reports whether code is in the ignore set.
func (c *Classifier) IsIgnored(code string) bool {
	_, ok := c.ignored[fold(code)]
	return ok
}

// Len returns the number of table entries.
func (c *Classifier) Len() int { return len(c.entries) }

// Unknown formats the fallback description for an unlisted code.
func Unknown(code string) string {
	return fmt.Sprintf("Unknown error: %s", code)
}

func fold(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
