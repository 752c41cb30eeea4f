package ecs

// EntityID uniquely identifies an entity for the lifetime of a Store.
// IDs are allocated monotonically and never reused, so a stale handle can
// never alias a newer entity.
type EntityID uint64

// NilEntity is the zero value; no valid entity ever carries it.
const NilEntity EntityID = 0

// ComponentKind identifies the closed set of component fragments an entity
// may carry. At most one component of a given kind is attached per entity.
type ComponentKind uint8

const (
	KindPosition ComponentKind = iota
	KindVelocity
	KindHealth
	KindSprite
	KindUnit

	kindCount
)

var kindNames = [kindCount]string{
	KindPosition: "position",
	KindVelocity: "velocity",
	KindHealth:   "health",
	KindSprite:   "sprite",
	KindUnit:     "unit",
}

// String returns the wire/log name for the kind.
func (k ComponentKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Component is implemented by every data fragment stored in the world.
// Components carry no behavior beyond derived read-only helpers.
type Component interface {
	Kind() ComponentKind
}
