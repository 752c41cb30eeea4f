package sim

import (
	"testing"

	"dustline/server/internal/ecs"
)

func newTestEngine(t *testing.T) (*Engine, Player) {
	t.Helper()
	e := NewEngine(EngineConfig{World: Config{Seed: 5}})
	p, _ := e.Join("ada", "red")
	return e, p
}

func firstUnit(t *testing.T, snap Snapshot, playerID string) EntityView {
	t.Helper()
	for _, ent := range snap.Entities {
		if ent.Unit != nil && ent.Unit.OwnerID == playerID {
			return ent
		}
	}
	t.Fatalf("no unit for player %s in snapshot", playerID)
	return EntityView{}
}

func TestAdvanceAppliesCommandsBeforeSystems(t *testing.T) {
	e, p := newTestEngine(t)
	snap := e.Snapshot()
	unit := firstUnit(t, snap, p.ID)
	startX := unit.Position.X

	cmd := Command{
		ActorID: p.ID,
		Kind:    CommandMove,
		Move: &MoveCommand{
			EntityIDs: []ecs.EntityID{unit.ID},
			TargetX:   startX + 100,
			TargetY:   unit.Position.Y,
		},
	}
	result := e.Advance([]Command{cmd}, 0.25)
	if result.Applied != 1 || result.Rejected != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Tick != 1 {
		t.Fatalf("first advance should land on tick 1, got %d", result.Tick)
	}

	after := firstUnit(t, e.Snapshot(), p.ID)
	// The same tick that ingested the command also integrated it.
	approx(t, after.Position.X, startX+e.Config().UnitSpeed*0.25, "position after one tick")
}

func TestAdvanceSurvivesBadCommands(t *testing.T) {
	e, p := newTestEngine(t)
	unit := firstUnit(t, e.Snapshot(), p.ID)

	cmds := []Command{
		{ActorID: p.ID, Kind: CommandKind("emote")},
		{ActorID: "ghost", Kind: CommandSelect, Select: &SelectCommand{X: 10, Y: 10}},
		{ActorID: p.ID, Kind: CommandMove, Move: &MoveCommand{
			EntityIDs: []ecs.EntityID{unit.ID},
			TargetX:   unit.Position.X + 50,
			TargetY:   unit.Position.Y,
		}},
	}
	result := e.Advance(cmds, 1.0/60)
	if result.Applied != 1 {
		t.Fatalf("valid command should still apply, got %+v", result)
	}
	if result.Rejected != 2 {
		t.Fatalf("expected 2 rejections, got %+v", result)
	}
	if e.Tick() != 1 {
		t.Fatalf("tick must advance despite rejections")
	}
}

func TestJoinSnapshotIncludesSelf(t *testing.T) {
	e := NewEngine(EngineConfig{World: Config{Seed: 5}})
	p, snap := e.Join("ada", "red")

	found := false
	for _, sp := range snap.Players {
		if sp.ID == p.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("join snapshot must include the joining player")
	}
	if len(snap.Entities) != e.Config().StartingUnits {
		t.Fatalf("join snapshot should carry the starting units, got %d entities", len(snap.Entities))
	}
	if snap.Map.Width != e.Config().MapWidth {
		t.Fatalf("join snapshot should carry the map")
	}
}

func TestLeaveRemovesPlayerFromNextSnapshot(t *testing.T) {
	e, p := newTestEngine(t)
	p2, _ := e.Join("grace", "blue")

	if _, ok := e.Leave(p.ID); !ok {
		t.Fatalf("expected leave to succeed")
	}
	e.Advance(nil, 1.0/60)
	snap := e.Snapshot()

	for _, sp := range snap.Players {
		if sp.ID == p.ID {
			t.Fatalf("departed player still in snapshot")
		}
	}
	for _, ent := range snap.Entities {
		if ent.Unit != nil && ent.Unit.OwnerID == p.ID {
			t.Fatalf("departed player's unit still in snapshot")
		}
	}
	firstUnit(t, snap, p2.ID) // the other player's unit survives
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	e, p := newTestEngine(t)
	snap := e.Snapshot()
	unit := firstUnit(t, snap, p.ID)
	frozenX := unit.Position.X

	move := Command{ActorID: p.ID, Kind: CommandMove, Move: &MoveCommand{
		EntityIDs: []ecs.EntityID{unit.ID},
		TargetX:   frozenX + 100,
		TargetY:   unit.Position.Y,
	}}
	e.Advance([]Command{move}, 0.5)

	if got := firstUnit(t, snap, p.ID).Position.X; got != frozenX {
		t.Fatalf("snapshot mutated while world advanced: %v != %v", got, frozenX)
	}

	before := e.Snapshot().Map.Terrain[0][0]
	snap.Map.Terrain[0][0] = before + 1
	if e.Snapshot().Map.Terrain[0][0] != before {
		t.Fatalf("snapshot terrain aliases the live map")
	}
}

func TestSnapshotChecksum(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.Snapshot()
	b := e.Snapshot()
	if a.Checksum() != b.Checksum() {
		t.Fatalf("identical states must hash identically")
	}
	e.Advance(nil, 1.0/60)
	c := e.Snapshot()
	if a.Checksum() == c.Checksum() {
		t.Fatalf("advancing the world must change the checksum")
	}
}

func TestStatusFollowsSetStatus(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.Status() != StatusWaiting {
		t.Fatalf("fresh world should report waiting, got %v", e.Status())
	}
	e.SetStatus(StatusPlaying)
	if snap := e.Snapshot(); snap.Status != StatusPlaying {
		t.Fatalf("snapshot status should follow SetStatus, got %v", snap.Status)
	}
}
