// Package guid provides the stable 128-bit asset and instance identifiers
// used throughout the compilation core. Unlike core.SlotTable's in-process
// handles, a GUID must stay stable across recompiles and across machines,
// since it is persisted in metadata JSON and referenced by other assets.
package guid

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// GUID is a 128-bit stable identifier for one emitted asset or one scene
// instance. The zero value is Nil and never refers to a real asset.
type GUID struct {
	id uuid.UUID
}

// Nil is the zero GUID.
var Nil = GUID{}

// New generates a fresh, randomly-allocated GUID. Called the first time an
// asset is compiled; subsequent recompiles must read the GUID back from
// existing metadata instead of calling New again, so identity stays
// stable (SPEC_FULL.md §3 "Stable GUID").
func New() GUID {
	return GUID{id: uuid.New()}
}

// Parse decodes a GUID from its canonical string form, as read back from
// existing metadata JSON.
func Parse(s string) (GUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("guid: parse %q: %w", s, err)
	}
	return GUID{id: id}, nil
}

// MustParse is Parse but panics on error; intended for literal GUIDs in
// tests and well-known type GUIDs defined as package-level vars.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// IsNil reports whether g is the zero GUID.
func (g GUID) IsNil() bool {
	return g.id == uuid.Nil
}

func (g GUID) String() string {
	return g.id.String()
}

func (g GUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.id.String())
}

func (g *GUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*g = GUID{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
