package sim

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Config captures the tunable world parameters for one match. Zero values
// are replaced by defaults in Normalized, so callers can set only the knobs
// they care about.
type Config struct {
	MapWidth  int     `json:"mapWidth" yaml:"map_width"`
	MapHeight int     `json:"mapHeight" yaml:"map_height"`
	TileSize  float64 `json:"tileSize" yaml:"tile_size"`
	Seed      int64   `json:"seed" yaml:"seed"`
	Mode      string  `json:"mode" yaml:"mode"`

	UnitSpeed        float64 `json:"unitSpeed" yaml:"unit_speed"`
	RegenPerSecond   float64 `json:"regenPerSecond" yaml:"regen_per_second"`
	StartingCredits  int     `json:"startingCredits" yaml:"starting_credits"`
	StartingUnits    int     `json:"startingUnits" yaml:"starting_units"`
	StartingUnitType string  `json:"startingUnitType" yaml:"starting_unit_type"`
}

// DefaultConfig returns the stock skirmish setup.
func DefaultConfig() Config {
	return Config{
		MapWidth:         64,
		MapHeight:        48,
		TileSize:         32,
		Seed:             1,
		Mode:             "skirmish",
		UnitSpeed:        80,
		RegenPerSecond:   1,
		StartingCredits:  1000,
		StartingUnits:    1,
		StartingUnitType: "harvester",
	}
}

// Normalized fills gaps and clamps nonsense so the world constructor never
// sees an unusable configuration.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.MapWidth <= 0 {
		c.MapWidth = def.MapWidth
	}
	if c.MapHeight <= 0 {
		c.MapHeight = def.MapHeight
	}
	if c.TileSize <= 0 {
		c.TileSize = def.TileSize
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.UnitSpeed <= 0 {
		c.UnitSpeed = def.UnitSpeed
	}
	if c.RegenPerSecond < 0 {
		c.RegenPerSecond = def.RegenPerSecond
	}
	if c.StartingCredits < 0 {
		c.StartingCredits = def.StartingCredits
	}
	if c.StartingUnits <= 0 {
		c.StartingUnits = def.StartingUnits
	}
	if c.StartingUnitType == "" {
		c.StartingUnitType = def.StartingUnitType
	}
	return c
}

// Hash fingerprints the normalized config. Clients and operators compare it
// across restarts to spot drifting world parameters.
func (c Config) Hash() uint64 {
	n := c.Normalized()
	canonical := fmt.Sprintf(
		"w=%d;h=%d;tile=%g;seed=%d;mode=%s;speed=%g;regen=%g;credits=%d;units=%d;unitType=%s",
		n.MapWidth, n.MapHeight, n.TileSize, n.Seed, n.Mode,
		n.UnitSpeed, n.RegenPerSecond, n.StartingCredits, n.StartingUnits, n.StartingUnitType,
	)
	return xxhash.Sum64String(canonical)
}
