package sim

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"dustline/server/internal/ecs"
)

// PositionView is the wire form of a position component.
type PositionView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// VelocityView is the wire form of a velocity component.
type VelocityView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// HealthView is the wire form of a health component.
type HealthView struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// SpriteView is the wire form of a sprite component.
type SpriteView struct {
	Texture  string  `json:"texture"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`
}

// UnitView is the wire form of a unit component.
type UnitView struct {
	Type     string `json:"type"`
	OwnerID  string `json:"ownerId"`
	Selected bool   `json:"selected,omitempty"`
}

// EntityView is one entity and whichever components it carries. Absent
// components marshal as absent keys, so clients can treat each view as a
// sparse record.
type EntityView struct {
	ID       ecs.EntityID  `json:"id"`
	Position *PositionView `json:"position,omitempty"`
	Velocity *VelocityView `json:"velocity,omitempty"`
	Health   *HealthView   `json:"health,omitempty"`
	Sprite   *SpriteView   `json:"sprite,omitempty"`
	Unit     *UnitView     `json:"unit,omitempty"`
}

// Snapshot is a deep copy of the world at a tick boundary. Nothing in it
// aliases live state, so it can be marshalled and shipped while the next
// tick runs.
type Snapshot struct {
	Tick     uint64       `json:"tick"`
	Status   Status       `json:"status"`
	Mode     string       `json:"mode"`
	Players  []Player     `json:"players"`
	Entities []EntityView `json:"entities"`
	Map      Map          `json:"map"`
}

// Snapshot captures the world. Players and entities are sorted by id so two
// captures of identical state serialize identically.
func (w *World) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:   w.tick,
		Status: w.status,
		Mode:   w.config.Mode,
		Map:    w.worldMap.Clone(),
	}

	snap.Players = make([]Player, 0, len(w.players))
	for _, p := range w.players {
		snap.Players = append(snap.Players, *p)
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		return snap.Players[i].ID < snap.Players[j].ID
	})

	ids := w.store.All()
	snap.Entities = make([]EntityView, 0, len(ids))
	for _, id := range ids {
		view := EntityView{ID: id}
		if pos, ok := w.store.PositionOf(id); ok {
			v := PositionView{X: pos.X, Y: pos.Y, Z: pos.Z}
			view.Position = &v
		}
		if vel, ok := w.store.VelocityOf(id); ok {
			v := VelocityView{X: vel.X, Y: vel.Y, Z: vel.Z}
			view.Velocity = &v
		}
		if h, ok := w.store.HealthOf(id); ok {
			v := HealthView{Current: h.Current, Max: h.Max}
			view.Health = &v
		}
		if spr, ok := w.store.SpriteOf(id); ok {
			v := SpriteView{Texture: spr.Texture, Width: spr.Width, Height: spr.Height, Rotation: spr.Rotation}
			view.Sprite = &v
		}
		if u, ok := w.store.UnitOf(id); ok {
			v := UnitView{Type: u.Type, OwnerID: u.OwnerID, Selected: u.Selected}
			view.Unit = &v
		}
		snap.Entities = append(snap.Entities, view)
	}
	return snap
}

// Checksum fingerprints the dynamic state: tick, roster, and every entity
// field. Two ends holding the same snapshot compute the same value, which
// makes silent divergence cheap to spot in diagnostics.
func (s *Snapshot) Checksum() uint64 {
	d := xxhash.New()
	var buf [8]byte
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}
	f64 := func(v float64) { u64(math.Float64bits(v)) }
	str := func(v string) {
		u64(uint64(len(v)))
		d.WriteString(v)
	}

	u64(s.Tick)
	str(string(s.Status))
	str(s.Mode)

	u64(uint64(len(s.Players)))
	for _, p := range s.Players {
		str(p.ID)
		str(p.Name)
		str(p.Faction)
		str(p.Color)
		u64(uint64(int64(p.Credits)))
		u64(uint64(int64(p.Power)))
		u64(uint64(int64(p.PowerCapacity)))
		if p.Active {
			u64(1)
		} else {
			u64(0)
		}
	}

	u64(uint64(len(s.Entities)))
	for _, e := range s.Entities {
		u64(uint64(e.ID))
		if e.Position != nil {
			u64(1)
			f64(e.Position.X)
			f64(e.Position.Y)
			f64(e.Position.Z)
		} else {
			u64(0)
		}
		if e.Velocity != nil {
			u64(1)
			f64(e.Velocity.X)
			f64(e.Velocity.Y)
			f64(e.Velocity.Z)
		} else {
			u64(0)
		}
		if e.Health != nil {
			u64(1)
			f64(e.Health.Current)
			f64(e.Health.Max)
		} else {
			u64(0)
		}
		if e.Sprite != nil {
			u64(1)
			str(e.Sprite.Texture)
			f64(e.Sprite.Width)
			f64(e.Sprite.Height)
			f64(e.Sprite.Rotation)
		} else {
			u64(0)
		}
		if e.Unit != nil {
			u64(1)
			str(e.Unit.Type)
			str(e.Unit.OwnerID)
			if e.Unit.Selected {
				u64(1)
			} else {
				u64(0)
			}
		} else {
			u64(0)
		}
	}
	return d.Sum64()
}
