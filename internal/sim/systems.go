package sim

import (
	"dustline/server/internal/ecs"
)

// DeathHook observes entities whose health reached zero during a tick.
// Implementations must only record what they saw; removing the entity or
// touching the store mid-traversal is not allowed. Install removal or loot
// behavior by draining the recorded ids after the tick.
type DeathHook interface {
	EntityDied(id ecs.EntityID)
}

// CollisionHook observes overlapping entity pairs detected during a tick.
// Each unordered pair is reported once per tick. Like DeathHook, it must not
// mutate the store.
type CollisionHook interface {
	EntitiesCollided(a, b ecs.EntityID)
}

// Rect is an axis-aligned box anchored at its minimum corner.
type Rect struct {
	X, Y, W, H float64
}

// Overlaps reports strict intersection: rectangles that merely share an edge
// do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// ContainsPoint reports whether a point falls inside the rectangle,
// inclusive of its edges.
func (r Rect) ContainsPoint(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// spriteRect is the footprint of a sprite: position is the top-left corner,
// the sprite's width and height are the extents.
func spriteRect(pos *ecs.Position, spr *ecs.Sprite) Rect {
	return Rect{
		X: pos.X,
		Y: pos.Y,
		W: spr.Width,
		H: spr.Height,
	}
}

// MovementSystem integrates velocity into position. It never collides, never
// clamps; anything that should react to the new positions runs after it in
// the pipeline.
type MovementSystem struct{}

func NewMovementSystem() *MovementSystem { return &MovementSystem{} }

func (s *MovementSystem) Name() string { return "movement" }

func (s *MovementSystem) Required() []ecs.ComponentKind {
	return []ecs.ComponentKind{ecs.KindPosition, ecs.KindVelocity}
}

func (s *MovementSystem) Update(store *ecs.Store, entities []ecs.EntityID, dt float64) {
	for _, id := range entities {
		pos, ok := store.PositionOf(id)
		if !ok {
			continue
		}
		vel, ok := store.VelocityOf(id)
		if !ok {
			continue
		}
		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
		pos.Z += vel.Z * dt
	}
}

// HealthSystem reports entities at or below zero health to the death hook
// and regenerates the rest toward max at a fixed rate. Dead entities do not
// regenerate; what happens to them is the hook's business.
type HealthSystem struct {
	RegenPerSecond float64
	Hook           DeathHook
}

func NewHealthSystem(regenPerSecond float64, hook DeathHook) *HealthSystem {
	return &HealthSystem{RegenPerSecond: regenPerSecond, Hook: hook}
}

func (s *HealthSystem) Name() string { return "health" }

func (s *HealthSystem) Required() []ecs.ComponentKind {
	return []ecs.ComponentKind{ecs.KindHealth}
}

func (s *HealthSystem) Update(store *ecs.Store, entities []ecs.EntityID, dt float64) {
	for _, id := range entities {
		h, ok := store.HealthOf(id)
		if !ok {
			continue
		}
		if h.Current <= 0 {
			if s.Hook != nil {
				s.Hook.EntityDied(id)
			}
			continue
		}
		h.Current += s.RegenPerSecond * dt
		if h.Current > h.Max {
			h.Current = h.Max
		}
	}
}

// CollisionSystem sweeps every positioned sprite against every other and
// reports strict AABB overlaps to the hook. Quadratic on purpose: entity
// counts stay small and the predictable order keeps ticks deterministic.
type CollisionSystem struct {
	Hook CollisionHook
}

func NewCollisionSystem(hook CollisionHook) *CollisionSystem {
	return &CollisionSystem{Hook: hook}
}

func (s *CollisionSystem) Name() string { return "collision" }

func (s *CollisionSystem) Required() []ecs.ComponentKind {
	return []ecs.ComponentKind{ecs.KindPosition, ecs.KindSprite}
}

func (s *CollisionSystem) Update(store *ecs.Store, entities []ecs.EntityID, dt float64) {
	if s.Hook == nil || len(entities) < 2 {
		return
	}
	ids := make([]ecs.EntityID, 0, len(entities))
	rects := make([]Rect, 0, len(entities))
	for _, id := range entities {
		pos, ok := store.PositionOf(id)
		if !ok {
			continue
		}
		spr, ok := store.SpriteOf(id)
		if !ok {
			continue
		}
		ids = append(ids, id)
		rects = append(rects, spriteRect(pos, spr))
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if rects[i].Overlaps(rects[j]) {
				s.Hook.EntitiesCollided(ids[i], ids[j])
			}
		}
	}
}
