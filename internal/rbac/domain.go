package rbac

import (
	"golang.org/x/text/unicode/norm"
)

// Entity names a protected resource category.
type Entity string

// Registered entities. The order is the order rows appear in every permission editor.
const (
	EntityUsers       Entity = "Usuarios"
	EntityRoles       Entity = "Roles"
	EntityPermissions Entity = "Permisos"
	EntityAttendance  Entity = "Asistencia"
	EntityActivities  Entity = "Actividades"
	EntityMeters      Entity = "Estado Medidores"
	EntityAITools     Entity = "Herramientas IA"
)

var registry = []Entity{
	EntityUsers,
	EntityRoles,
	EntityPermissions,
	EntityAttendance,
	EntityActivities,
	EntityMeters,
	EntityAITools,
}

// Entities returns the entity registry in display order. The slice is a copy.
func Entities() []Entity {
	out := make([]Entity, len(registry))
	copy(out, registry)
	return out
}

// IsRegistered reports whether e is part of the entity registry.
func IsRegistered(e Entity) bool {
	for _, known := range registry {
		if known == e {
			return true
		}
	}
	return false
}

// ParseEntity normalises raw input and checks it against the registry.
func ParseEntity(raw string) (Entity, bool) {
	e := Entity(norm.NFC.String(raw))
	return e, IsRegistered(e)
}

// Action is one of the four capabilities tracked per entity.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Actions lists every action in column order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}
}

// ParseAction validates raw input as an Action.
func ParseAction(raw string) (Action, bool) {
	switch a := Action(raw); a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return a, true
	default:
		return "", false
	}
}

// CapabilitySet holds the four independent flags for one entity.
// No flag implies another.
type CapabilitySet struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// Allows reports whether the flag for action is set.
func (c CapabilitySet) Allows(action Action) bool {
	switch action {
	case ActionView:
		return c.View
	case ActionCreate:
		return c.Create
	case ActionEdit:
		return c.Edit
	case ActionDelete:
		return c.Delete
	default:
		return false
	}
}

// With returns a copy of c with the flag for action set to value.
func (c CapabilitySet) With(action Action, value bool) CapabilitySet {
	switch action {
	case ActionView:
		c.View = value
	case ActionCreate:
		c.Create = value
	case ActionEdit:
		c.Edit = value
	case ActionDelete:
		c.Delete = value
	}
	return c
}

// Principal describes the signed-in actor and the matrix resolved for it at sign-in.
type Principal struct {
	UserID      string
	Role        string
	Permissions Matrix
}

// Can reports whether the principal may perform action on entity.
func (p Principal) Can(entity Entity, action Action) bool {
	return p.Permissions.Allows(entity, action)
}
