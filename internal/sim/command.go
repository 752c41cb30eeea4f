package sim

import (
	"time"

	"dustline/server/internal/ecs"
)

// CommandKind identifies the handler a queued command is routed to.
type CommandKind string

const (
	CommandMove   CommandKind = "move"
	CommandAttack CommandKind = "attack"
	CommandBuild  CommandKind = "build"
	CommandSelect CommandKind = "select"
)

// Command carries one player instruction from the network edge into the tick
// pipeline. Exactly one payload pointer is set, matching Kind; the rest stay
// nil. Commands are value types so the buffer can copy them freely.
type Command struct {
	ActorID    string
	Kind       CommandKind
	IssuedAt   time.Time
	OriginTick uint64

	Move   *MoveCommand
	Attack *AttackCommand
	Build  *BuildCommand
	Select *SelectCommand
}

// MoveCommand orders a set of owned units toward a world-space target.
type MoveCommand struct {
	EntityIDs []ecs.EntityID `json:"entityIds"`
	TargetX   float64        `json:"targetX"`
	TargetY   float64        `json:"targetY"`
}

// AttackCommand names an attacker and its victim. Combat resolution is left
// to the installed Rules; the base rules only validate both ends exist.
type AttackCommand struct {
	AttackerID ecs.EntityID `json:"attackerId"`
	TargetID   ecs.EntityID `json:"targetId"`
}

// BuildCommand requests a structure at a world-space location.
type BuildCommand struct {
	BuildingType string  `json:"buildingType"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

// SelectCommand marks the units under a world-space point as selected.
type SelectCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
