package sim

import (
	"dustline/server/internal/ecs"
)

// Status is the match state communicated to clients. It mirrors the loop's
// lifecycle: waiting before the first Run, playing while ticking, paused
// while suspended, ended once stopped.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
)

// World owns every piece of authoritative match state: the tick counter, the
// entity store, the player roster, and the generated map. It is not safe for
// concurrent use; the Engine serializes all access behind one mutex.
type World struct {
	config   Config
	tick     uint64
	store    *ecs.Store
	players  map[string]*Player
	status   Status
	worldMap Map
	nextSlot int
}

// NewWorld builds a fresh world from the normalized config, including the
// seeded terrain. No players or entities exist yet.
func NewWorld(cfg Config) *World {
	cfg = cfg.Normalized()
	return &World{
		config:   cfg,
		store:    ecs.NewStore(),
		players:  make(map[string]*Player),
		status:   StatusWaiting,
		worldMap: GenerateMap(cfg.MapWidth, cfg.MapHeight, cfg.TileSize, cfg.Seed),
	}
}

// Config returns the normalized configuration the world was built with.
func (w *World) Config() Config { return w.config }

// Tick reports how many simulation steps have completed.
func (w *World) Tick() uint64 { return w.tick }

// Store exposes the entity store for systems and rules.
func (w *World) Store() *ecs.Store { return w.store }

// Map returns the generated terrain.
func (w *World) Map() Map { return w.worldMap }

// Status reports the current match state.
func (w *World) Status() Status { return w.status }

// SetStatus moves the match to a new lifecycle state.
func (w *World) SetStatus(s Status) { w.status = s }

// Player looks up a roster entry by id.
func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// PlayerCount reports the number of players on the roster.
func (w *World) PlayerCount() int { return len(w.players) }

// AddPlayer materializes a player: identity, slot color, starting credits,
// and the configured starting units placed at the slot's spawn point.
func (w *World) AddPlayer(name, faction string) *Player {
	p := NewPlayer(name, faction, w.nextSlot, w.config.StartingCredits)
	w.nextSlot++
	w.players[p.ID] = p

	spawn := w.worldMap.SpawnFor(p.SpawnSlot)
	for i := 0; i < w.config.StartingUnits; i++ {
		offset := float64(i) * w.config.TileSize
		w.store.CreateUnit(spawn.X+offset, spawn.Y, w.config.StartingUnitType, p.ID)
	}
	return p
}

// RemovePlayer drops a player from the roster and destroys every entity they
// own. The returned copy reflects the player's final state with Active
// cleared, suitable for a leave notice.
func (w *World) RemovePlayer(id string) (Player, bool) {
	p, ok := w.players[id]
	if !ok {
		return Player{}, false
	}
	delete(w.players, id)
	p.Active = false

	for _, eid := range w.store.Query(ecs.KindUnit) {
		if u, ok := w.store.UnitOf(eid); ok && u.OwnerID == id {
			w.store.Remove(eid)
		}
	}
	return *p, true
}
