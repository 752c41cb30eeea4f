package ecs

import "sort"

const (
	unitMaxHealth  = 100.0
	unitSpriteSize = 32.0
)

// Store owns entity identities and their attached components. It is the
// single source of truth for world membership; it is NOT safe for concurrent
// use — the simulation engine serializes every access (see internal/sim).
type Store struct {
	nextID EntityID
	alive  map[EntityID]struct{}
	// kind-major layout: one map per component kind keyed by entity.
	components [kindCount]map[EntityID]Component
}

// NewStore returns an empty store. The first allocated handle is 1.
func NewStore() *Store {
	s := &Store{
		nextID: 1,
		alive:  make(map[EntityID]struct{}),
	}
	for k := range s.components {
		s.components[k] = make(map[EntityID]Component)
	}
	return s
}

// Create allocates a fresh entity handle. Handles are never reused within
// the lifetime of the store, even after Remove.
func (s *Store) Create() EntityID {
	id := s.nextID
	s.nextID++
	s.alive[id] = struct{}{}
	return id
}

// CreateUnit creates an entity pre-attached with the standard unit bundle:
// position, full health, a sprite sized for the unit, and the unit tag.
func (s *Store) CreateUnit(x, y float64, unitType, playerID string) EntityID {
	id := s.Create()
	s.Attach(id, &Position{X: x, Y: y})
	s.Attach(id, &Health{Current: unitMaxHealth, Max: unitMaxHealth})
	s.Attach(id, &Sprite{Texture: unitType, Width: unitSpriteSize, Height: unitSpriteSize})
	s.Attach(id, &Unit{Type: unitType, OwnerID: playerID})
	return id
}

// Attach sets the component on the entity, replacing any existing component
// of the same kind. Attaching to a removed or unknown entity is a no-op.
func (s *Store) Attach(id EntityID, c Component) {
	if _, ok := s.alive[id]; !ok {
		return
	}
	s.components[c.Kind()][id] = c
}

// Detach removes a single component kind from the entity.
func (s *Store) Detach(id EntityID, kind ComponentKind) {
	if int(kind) >= len(s.components) {
		return
	}
	delete(s.components[kind], id)
}

// Get returns the component of the given kind, or nil when absent.
func (s *Store) Get(id EntityID, kind ComponentKind) Component {
	if int(kind) >= len(s.components) {
		return nil
	}
	return s.components[kind][id]
}

// Has reports whether the entity carries the kind.
func (s *Store) Has(id EntityID, kind ComponentKind) bool {
	return s.Get(id, kind) != nil
}

// Contains reports whether the entity exists.
func (s *Store) Contains(id EntityID) bool {
	_, ok := s.alive[id]
	return ok
}

// Remove destroys the entity immediately: the handle dies and every attached
// component becomes unreachable. Removing an unknown entity is a no-op.
func (s *Store) Remove(id EntityID) {
	if _, ok := s.alive[id]; !ok {
		return
	}
	delete(s.alive, id)
	for k := range s.components {
		delete(s.components[k], id)
	}
}

// Len reports the number of live entities.
func (s *Store) Len() int { return len(s.alive) }

// Query returns every entity whose attached kinds are a superset of kinds,
// in ascending handle order. Sorted order is stronger than the contract
// requires (stable within a tick) and keeps pairwise systems deterministic
// for a fixed store state. An empty kind set matches every live entity.
func (s *Store) Query(kinds ...ComponentKind) []EntityID {
	var result []EntityID
	if len(kinds) == 0 {
		for id := range s.alive {
			result = append(result, id)
		}
		sortEntityIDs(result)
		return result
	}

	// Iterate the smallest kind map to bound the candidate set.
	smallest := kinds[0]
	for _, k := range kinds[1:] {
		if len(s.components[k]) < len(s.components[smallest]) {
			smallest = k
		}
	}
	for id := range s.components[smallest] {
		match := true
		for _, k := range kinds {
			if k == smallest {
				continue
			}
			if _, ok := s.components[k][id]; !ok {
				match = false
				break
			}
		}
		if match {
			result = append(result, id)
		}
	}
	sortEntityIDs(result)
	return result
}

// All returns every live entity in ascending handle order.
func (s *Store) All() []EntityID {
	return s.Query()
}

func sortEntityIDs(ids []EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Typed accessors. Each returns the live component pointer so systems can
// mutate in place, and false when the entity lacks the kind.

// PositionOf returns the entity's position component.
func (s *Store) PositionOf(id EntityID) (*Position, bool) {
	c, ok := s.components[KindPosition][id].(*Position)
	return c, ok
}

// VelocityOf returns the entity's velocity component.
func (s *Store) VelocityOf(id EntityID) (*Velocity, bool) {
	c, ok := s.components[KindVelocity][id].(*Velocity)
	return c, ok
}

// HealthOf returns the entity's health component.
func (s *Store) HealthOf(id EntityID) (*Health, bool) {
	c, ok := s.components[KindHealth][id].(*Health)
	return c, ok
}

// SpriteOf returns the entity's sprite component.
func (s *Store) SpriteOf(id EntityID) (*Sprite, bool) {
	c, ok := s.components[KindSprite][id].(*Sprite)
	return c, ok
}

// UnitOf returns the entity's unit component.
func (s *Store) UnitOf(id EntityID) (*Unit, bool) {
	c, ok := s.components[KindUnit][id].(*Unit)
	return c, ok
}
