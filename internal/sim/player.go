package sim

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// playerColors is the palette assigned to players in join order. Slots wrap
// when more players join than the palette has entries.
var playerColors = [...]string{
	"#d9534f", // red
	"#428bca", // blue
	"#5cb85c", // green
	"#f0ad4e", // amber
	"#9b59b6", // violet
	"#1abc9c", // teal
	"#e67e22", // orange
	"#95a5a6", // slate
}

// Player is one connected participant: identity, faction, and the resource
// ledger the economy systems draw against. Fields with tags travel on the
// wire inside snapshots and playerJoin notices.
type Player struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Faction       string `json:"faction"`
	Color         string `json:"color"`
	Credits       int    `json:"credits"`
	Power         int    `json:"power"`
	PowerCapacity int    `json:"powerCapacity"`
	Active        bool   `json:"active"`

	SpawnSlot int       `json:"-"`
	JoinedAt  time.Time `json:"-"`
}

// NewPlayer mints a player with a fresh identity and the slot-derived color.
func NewPlayer(name, faction string, slot int, credits int) *Player {
	return &Player{
		ID:        uuid.NewString(),
		Name:      normalizeName(name),
		Faction:   normalizeFaction(faction),
		Color:     colorForSlot(slot),
		Credits:   credits,
		Active:    true,
		SpawnSlot: slot,
		JoinedAt:  time.Now(),
	}
}

func colorForSlot(slot int) string {
	if slot < 0 {
		slot = 0
	}
	return playerColors[slot%len(playerColors)]
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "commander"
	}
	return name
}

func normalizeFaction(faction string) string {
	faction = strings.ToLower(strings.TrimSpace(faction))
	if faction == "" {
		return "neutral"
	}
	return faction
}
