// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Default values applied to a freshly added counter.
const (
	DefaultInterval    = 1
	DefaultNumerator   = 1
	DefaultDenominator = 4096
)

// ID identifies a counter or a source mapping. It is opaque and immutable.
type ID string

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// UnmarshalJSON accepts both strings and numbers. Older saves stored ids as
// millisecond timestamps.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// Counter is one tracked hunt.
type Counter struct {
	ID                     ID     `json:"id"`
	Count                  int    `json:"count"`
	Interval               int    `json:"interval"`
	ProbabilityNumerator   int    `json:"probabilityNumerator"`
	ProbabilityDenominator int    `json:"probabilityDenominator"`
	PokemonName            string `json:"pokemonName,omitempty"`
	PokemonImage           string `json:"pokemonImage,omitempty"`
	CustomName             string `json:"customName,omitempty"`
}

// NewCounter returns a counter with default field values and no target.
func NewCounter(id ID) Counter {
	return Counter{
		ID:                     id,
		Count:                  0,
		Interval:               DefaultInterval,
		ProbabilityNumerator:   DefaultNumerator,
		ProbabilityDenominator: DefaultDenominator,
	}
}

// Step is the effective per-increment step. Unset or invalid intervals count as 1.
func (c Counter) Step() int {
	if c.Interval < 1 {
		return DefaultInterval
	}
	return c.Interval
}

// HasOdds reports whether both odds fields are set.
func (c Counter) HasOdds() bool {
	return c.ProbabilityNumerator != 0 && c.ProbabilityDenominator > 0
}

var titleCaser = cases.Title(language.Und) //nolint:gochecknoglobals // stateless after construction

// DisplayName is the label shown for the counter at the given 0-based position.
func (c Counter) DisplayName(position int) string {
	if c.CustomName != "" {
		return c.CustomName
	}
	if c.PokemonName != "" {
		return TargetLabel(c.PokemonName)
	}
	return fmt.Sprintf("Counter %d", position+1)
}

// TargetLabel turns a catalog name like "mr-mime-female" into "Mr Mime".
func TargetLabel(name string) string {
	base := strings.TrimSuffix(name, "-female")
	return titleCaser.String(strings.ReplaceAll(base, "-", " "))
}
