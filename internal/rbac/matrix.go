package rbac

import (
	"encoding/json"
	"fmt"

	"github.com/agrocomice/agroaccess/internal/shared"
)

// Matrix maps every registered entity to its capability set.
type Matrix map[Entity]CapabilitySet

// BuildDefaultMatrix returns an all-false matrix with one row per entity.
func BuildDefaultMatrix(entities []Entity) Matrix {
	m := make(Matrix, len(entities))
	for _, e := range entities {
		m[e] = CapabilitySet{}
	}
	return m
}

// DefaultMatrix is BuildDefaultMatrix over the live registry.
func DefaultMatrix() Matrix {
	return BuildDefaultMatrix(registry)
}

// FullAccessMatrix grants every action on every registered entity.
func FullAccessMatrix() Matrix {
	m := DefaultMatrix()
	for e := range m {
		m[e] = CapabilitySet{View: true, Create: true, Edit: true, Delete: true}
	}
	return m
}

// Normalize returns a complete copy of m: every registered entity is present
// (missing rows become all-false) and keys outside the registry are dropped.
// A nil input yields the default matrix.
func Normalize(m Matrix) Matrix {
	out := DefaultMatrix()
	for e, caps := range m {
		if _, ok := out[e]; ok {
			out[e] = caps
		}
	}
	return out
}

// Allows reports whether m grants action on entity. Anything other than an
// explicit true denies, including a nil matrix or a missing row.
func (m Matrix) Allows(entity Entity, action Action) bool {
	caps, ok := m[entity]
	if !ok {
		return false
	}
	return caps.Allows(action)
}

// Get returns the capability set for entity, all-false when absent.
func (m Matrix) Get(entity Entity) CapabilitySet {
	return m[entity]
}

// Set changes a single cell. It returns a validation error for entities
// outside the registry so that no unknown row can be introduced.
func (m Matrix) Set(entity Entity, action Action, value bool) error {
	if !IsRegistered(entity) {
		return fmt.Errorf("%w: unknown entity %q", shared.ErrValidation, entity)
	}
	if _, ok := ParseAction(string(action)); !ok {
		return fmt.Errorf("%w: unknown action %q", shared.ErrValidation, action)
	}
	m[entity] = m[entity].With(action, value)
	return nil
}

// Clone returns a deep copy of m.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for e, caps := range m {
		out[e] = caps
	}
	return out
}

// Equal reports whether both matrices hold the same rows.
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for e, caps := range m {
		if o, ok := other[e]; !ok || o != caps {
			return false
		}
	}
	return true
}

// Visible lists, in registry order, the entities m grants view on.
func (m Matrix) Visible() []Entity {
	out := make([]Entity, 0, len(registry))
	for _, e := range registry {
		if m.Allows(e, ActionView) {
			out = append(out, e)
		}
	}
	return out
}

// MarshalMatrix encodes m as a JSON object keyed by entity name.
func MarshalMatrix(m Matrix) ([]byte, error) {
	return json.Marshal(Normalize(m))
}

// UnmarshalMatrix decodes a stored matrix and normalises it.
func UnmarshalMatrix(data []byte) (Matrix, error) {
	if len(data) == 0 {
		return DefaultMatrix(), nil
	}
	var raw Matrix
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rbac: decode matrix: %w", err)
	}
	return Normalize(raw), nil
}

// ValidateMatrix rejects rows for entities outside the registry. Missing rows
// are fine; Normalize fills them.
func ValidateMatrix(m Matrix) error {
	for e := range m {
		if !IsRegistered(e) {
			return fmt.Errorf("%w: unknown entity %q", shared.ErrValidation, e)
		}
	}
	return nil
}
