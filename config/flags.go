package config

import (
	"strings"
)

// Overrides Repeatable command line flag collecting "dotted.path=value" overrides.
// A single flag value may hold several overrides separated by spaces.
type Overrides []string

// String Implements flag.Value
func (o *Overrides) String() string {
	return strings.Join(*o, " ")
}

// Set Implements flag.Value
func (o *Overrides) Set(v string) error {
	for _, item := range strings.Fields(v) {
		if !strings.Contains(item, "=") {
			return ErrBadOverride
		}
		*o = append(*o, item)
	}
	return nil
}
