package sim

import "math/rand"

// TileKind classifies one cell of the terrain grid.
type TileKind uint8

const (
	TileGround TileKind = iota
	TileRock
	TileOre
)

// SpawnPoint is a world-space position new players are anchored to.
type SpawnPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Map is the immutable terrain a match is played on. It is generated once at
// world construction and shipped to clients inside every snapshot; nothing
// mutates it afterwards.
type Map struct {
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	TileSize float64      `json:"tileSize"`
	Seed     int64        `json:"seed"`
	Terrain  [][]TileKind `json:"terrain"`
	Spawns   []SpawnPoint `json:"spawns"`
}

// GenerateMap lays out terrain deterministically from the seed: scattered
// rock patches, an ore field near each spawn, and a cleared landing zone
// around the spawns themselves.
func GenerateMap(width, height int, tileSize float64, seed int64) Map {
	if width < 8 {
		width = 8
	}
	if height < 8 {
		height = 8
	}
	if tileSize <= 0 {
		tileSize = 32
	}

	m := Map{
		Width:    width,
		Height:   height,
		TileSize: tileSize,
		Seed:     seed,
	}

	m.Terrain = make([][]TileKind, height)
	for y := range m.Terrain {
		m.Terrain[y] = make([]TileKind, width)
	}

	rng := rand.New(rand.NewSource(seed))

	patches := (width * height) / 160
	for i := 0; i < patches; i++ {
		cx := rng.Intn(width)
		cy := rng.Intn(height)
		radius := 1 + rng.Intn(3)
		m.fill(cx, cy, radius, TileRock)
	}

	inset := width / 10
	if inset < 2 {
		inset = 2
	}
	vInset := height / 10
	if vInset < 2 {
		vInset = 2
	}
	corners := [][2]int{
		{inset, vInset},
		{width - 1 - inset, vInset},
		{inset, height - 1 - vInset},
		{width - 1 - inset, height - 1 - vInset},
	}
	for _, c := range corners {
		m.Spawns = append(m.Spawns, SpawnPoint{
			X: (float64(c[0]) + 0.5) * tileSize,
			Y: (float64(c[1]) + 0.5) * tileSize,
		})
	}

	// Ore sits a few tiles off each spawn, jittered so maps don't all read
	// the same, then the landing zone is swept clear of everything.
	for _, c := range corners {
		ox := clampTile(c[0]+3+rng.Intn(2), width)
		oy := clampTile(c[1]+3+rng.Intn(2), height)
		m.fill(ox, oy, 1, TileOre)
	}
	for _, c := range corners {
		m.fill(c[0], c[1], 2, TileGround)
	}

	return m
}

func (m *Map) fill(cx, cy, radius int, kind TileKind) {
	for y := cy - radius; y <= cy+radius; y++ {
		if y < 0 || y >= m.Height {
			continue
		}
		for x := cx - radius; x <= cx+radius; x++ {
			if x < 0 || x >= m.Width {
				continue
			}
			dx := x - cx
			dy := y - cy
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}
			if dx+dy > radius {
				continue
			}
			m.Terrain[y][x] = kind
		}
	}
}

func clampTile(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}

// PixelWidth reports the world width in world units.
func (m Map) PixelWidth() float64 { return float64(m.Width) * m.TileSize }

// PixelHeight reports the world height in world units.
func (m Map) PixelHeight() float64 { return float64(m.Height) * m.TileSize }

// Contains reports whether a world-space point lies inside the map.
func (m Map) Contains(x, y float64) bool {
	return x >= 0 && x < m.PixelWidth() && y >= 0 && y < m.PixelHeight()
}

// TileAt returns the tile under a world-space point.
func (m Map) TileAt(x, y float64) (TileKind, bool) {
	if !m.Contains(x, y) {
		return TileGround, false
	}
	tx := int(x / m.TileSize)
	ty := int(y / m.TileSize)
	return m.Terrain[ty][tx], true
}

// SpawnFor returns the spawn point for a join slot, wrapping when more
// players join than the map has spawns.
func (m Map) SpawnFor(slot int) SpawnPoint {
	if len(m.Spawns) == 0 {
		return SpawnPoint{X: m.PixelWidth() / 2, Y: m.PixelHeight() / 2}
	}
	if slot < 0 {
		slot = 0
	}
	return m.Spawns[slot%len(m.Spawns)]
}

// Clone deep-copies the map so snapshots never alias live terrain rows.
func (m Map) Clone() Map {
	out := m
	out.Terrain = make([][]TileKind, len(m.Terrain))
	for y, row := range m.Terrain {
		out.Terrain[y] = append([]TileKind(nil), row...)
	}
	out.Spawns = append([]SpawnPoint(nil), m.Spawns...)
	return out
}
