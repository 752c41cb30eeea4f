package ecs

// Position locates an entity in continuous world space.
type Position struct {
	X, Y, Z float64
}

// Kind implements Component.
func (*Position) Kind() ComponentKind { return KindPosition }

// Velocity is the per-second displacement applied by the movement system.
type Velocity struct {
	X, Y, Z float64
}

// Kind implements Component.
func (*Velocity) Kind() ComponentKind { return KindVelocity }

// Health tracks current and maximum hit points.
type Health struct {
	Current float64
	Max     float64
}

// Kind implements Component.
func (*Health) Kind() ComponentKind { return KindHealth }

// Alive reports whether the entity still has hit points left.
func (h *Health) Alive() bool { return h.Current > 0 }

// Percent returns the current/max ratio, 0 when max is unset.
func (h *Health) Percent() float64 {
	if h.Max <= 0 {
		return 0
	}
	return h.Current / h.Max
}

// Sprite carries render-only texture metadata. The server never draws it;
// it exists so snapshots hand clients everything they need and so the
// collision system has an extent to test against.
type Sprite struct {
	Texture  string
	Width    float64
	Height   float64
	Rotation float64
}

// Kind implements Component.
func (*Sprite) Kind() ComponentKind { return KindSprite }

// Unit tags an entity as a player-owned game unit.
type Unit struct {
	Type     string
	OwnerID  string
	Selected bool
}

// Kind implements Component.
func (*Unit) Kind() ComponentKind { return KindUnit }
