package sim

import (
	"math"

	"dustline/server/internal/ecs"
)

// Rules decides how player commands mutate the world. Game modes swap in
// their own implementation; BaseRules carries the shared skirmish behavior
// and validates everything before touching the store, so a rejected command
// leaves no partial effects.
type Rules interface {
	HandleMove(w *World, actorID string, cmd *MoveCommand) error
	HandleAttack(w *World, actorID string, cmd *AttackCommand) error
	HandleBuild(w *World, actorID string, cmd *BuildCommand) error
	HandleSelect(w *World, actorID string, cmd *SelectCommand) error
}

// BaseRules is the default rule set. Move and select are fully implemented;
// attack and build validate their targets and stop there, leaving combat and
// construction to a game mode.
type BaseRules struct{}

var _ Rules = BaseRules{}

func (BaseRules) HandleMove(w *World, actorID string, cmd *MoveCommand) error {
	if err := requireActivePlayer(w, actorID, "move"); err != nil {
		return err
	}
	if cmd == nil {
		return invalidf("move", "missing payload")
	}
	if len(cmd.EntityIDs) == 0 {
		return invalidf("entityIds", "no units named")
	}
	if !finite(cmd.TargetX) || !finite(cmd.TargetY) {
		return invalidf("target", "coordinates must be finite")
	}
	if !w.Map().Contains(cmd.TargetX, cmd.TargetY) {
		return invalidf("target", "outside world bounds")
	}

	store := w.Store()
	for _, id := range cmd.EntityIDs {
		unit, ok := store.UnitOf(id)
		if !ok {
			return invalidf("entityIds", "entity %d is not a controllable unit", id)
		}
		if unit.OwnerID != actorID {
			return invalidf("entityIds", "entity %d belongs to another player", id)
		}
		if _, ok := store.PositionOf(id); !ok {
			return invalidf("entityIds", "entity %d has no position", id)
		}
	}

	speed := w.Config().UnitSpeed
	for _, id := range cmd.EntityIDs {
		pos, _ := store.PositionOf(id)
		dx := cmd.TargetX - pos.X
		dy := cmd.TargetY - pos.Y
		dist := math.Hypot(dx, dy)
		vel := &ecs.Velocity{}
		if dist > 1e-9 {
			vel.X = dx / dist * speed
			vel.Y = dy / dist * speed
		}
		store.Attach(id, vel)
	}
	return nil
}

func (BaseRules) HandleAttack(w *World, actorID string, cmd *AttackCommand) error {
	if err := requireActivePlayer(w, actorID, "attack"); err != nil {
		return err
	}
	if cmd == nil {
		return invalidf("attack", "missing payload")
	}
	store := w.Store()
	attacker, ok := store.UnitOf(cmd.AttackerID)
	if !ok {
		return invalidf("attackerId", "entity %d is not a controllable unit", cmd.AttackerID)
	}
	if attacker.OwnerID != actorID {
		return invalidf("attackerId", "entity %d belongs to another player", cmd.AttackerID)
	}
	if _, ok := store.HealthOf(cmd.TargetID); !ok {
		return invalidf("targetId", "entity %d has nothing to damage", cmd.TargetID)
	}
	// Damage numbers are a game-mode concern; the base rules stop at
	// validating both ends of the engagement.
	return nil
}

func (BaseRules) HandleBuild(w *World, actorID string, cmd *BuildCommand) error {
	if err := requireActivePlayer(w, actorID, "build"); err != nil {
		return err
	}
	if cmd == nil {
		return invalidf("build", "missing payload")
	}
	if cmd.BuildingType == "" {
		return invalidf("buildingType", "must be set")
	}
	if !finite(cmd.X) || !finite(cmd.Y) {
		return invalidf("location", "coordinates must be finite")
	}
	tile, inside := w.Map().TileAt(cmd.X, cmd.Y)
	if !inside {
		return invalidf("location", "outside world bounds")
	}
	if tile == TileRock {
		return invalidf("location", "cannot build on rock")
	}
	// Costs and structure placement are a game-mode concern; the base rules
	// stop once the site is valid.
	return nil
}

func (BaseRules) HandleSelect(w *World, actorID string, cmd *SelectCommand) error {
	if err := requireActivePlayer(w, actorID, "select"); err != nil {
		return err
	}
	if cmd == nil {
		return invalidf("select", "missing payload")
	}
	if !finite(cmd.X) || !finite(cmd.Y) {
		return invalidf("point", "coordinates must be finite")
	}

	// Selection is replaced wholesale: clicking empty ground clears it.
	store := w.Store()
	for _, id := range store.Query(ecs.KindUnit, ecs.KindPosition, ecs.KindSprite) {
		unit, ok := store.UnitOf(id)
		if !ok || unit.OwnerID != actorID {
			continue
		}
		pos, _ := store.PositionOf(id)
		spr, _ := store.SpriteOf(id)
		unit.Selected = spriteRect(pos, spr).ContainsPoint(cmd.X, cmd.Y)
	}
	return nil
}

func requireActivePlayer(w *World, actorID, op string) error {
	p, ok := w.Player(actorID)
	if !ok {
		return &LifecycleError{Op: op, Reason: "unknown player " + actorID}
	}
	if !p.Active {
		return &LifecycleError{Op: op, Reason: "player " + actorID + " is no longer active"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
