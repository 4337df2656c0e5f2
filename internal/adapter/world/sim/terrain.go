package sim

import (
	"math"
	"sort"
	"sync"

	"agentbridge/internal/domain/world"
)

const (
	SurfaceY   = 63
	chunkSize  = 16
	treeHeight = 4
)

type zone int

const (
	zoneSafe zone = iota
	zoneForest
	zoneQuarry
	zoneWild
)

// column is the generated profile of one x/z position.
type column struct {
	zone   zone
	tree   bool
	rock   bool
	water  bool
	oreY   int
	oreKey string
}

type chunkCoord struct{ X, Z int }

// terrain generates columns lazily per chunk and keeps block edits on top.
type terrain struct {
	seed int

	mu     sync.Mutex
	chunks map[chunkCoord][]column
	edits  map[world.Cell]string
}

func newTerrain(seed int64) *terrain {
	return &terrain{
		seed:   int(seed),
		chunks: map[chunkCoord][]column{},
		edits:  map[world.Cell]string{},
	}
}

func (t *terrain) blockAt(c world.Cell) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.edits[c]; ok {
		return b
	}
	return t.generatedLocked(c)
}

func (t *terrain) setBlock(c world.Cell, block string) (previous string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	previous, ok := t.edits[c]
	if !ok {
		previous = t.generatedLocked(c)
	}
	t.edits[c] = block
	return previous
}

// surfaceAt is the first free y above the ground at x/z.
func (t *terrain) surfaceAt(x, z int) int {
	y := SurfaceY + 1
	for world.Solid(t.blockAt(world.Cell{X: x, Y: y, Z: z})) {
		y++
	}
	return y
}

// editsMatching returns edited cells within radius of center holding a
// matching block.
func (t *terrain) editsMatching(match world.Match, center world.Cell, radius int) []world.Cell {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []world.Cell
	for c, b := range t.edits {
		if !match.Matches(b) {
			continue
		}
		if abs(c.X-center.X) > radius || abs(c.Y-center.Y) > radius || abs(c.Z-center.Z) > radius {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}

var generatedBlocks = []string{
	world.BlockAir, "bedrock", "water", "grass_block", "dirt", "stone",
	"oak_log", "oak_leaves", "coal_ore", "iron_ore",
}

// generatable reports whether the generator can produce a matching block.
func generatable(match world.Match) bool {
	for _, b := range generatedBlocks {
		if match.Matches(b) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (t *terrain) biomeAt(x, z int) string {
	switch zoneByDistance(x, z) {
	case zoneSafe:
		return "plains"
	case zoneForest:
		return "forest"
	case zoneQuarry:
		return "stony_peaks"
	default:
		return "savanna"
	}
}

func (t *terrain) generatedLocked(c world.Cell) string {
	col := t.columnLocked(c.X, c.Z)
	switch {
	case c.Y <= 0:
		return "bedrock"
	case c.Y == SurfaceY && col.water:
		return "water"
	case c.Y == SurfaceY:
		return "grass_block"
	case c.Y < SurfaceY && c.Y == col.oreY:
		return col.oreKey
	case c.Y < SurfaceY && c.Y >= SurfaceY-3:
		return "dirt"
	case c.Y < SurfaceY:
		return "stone"
	case col.rock && c.Y == SurfaceY+1:
		return "stone"
	case col.tree && c.Y > SurfaceY && c.Y <= SurfaceY+treeHeight:
		return "oak_log"
	case col.tree && c.Y == SurfaceY+treeHeight+1:
		return "oak_leaves"
	default:
		return world.BlockAir
	}
}

func (t *terrain) columnLocked(x, z int) column {
	cc := chunkCoord{X: floorDiv(x, chunkSize), Z: floorDiv(z, chunkSize)}
	cols, ok := t.chunks[cc]
	if !ok {
		cols = t.generateChunk(cc)
		t.chunks[cc] = cols
	}
	lx, lz := x-cc.X*chunkSize, z-cc.Z*chunkSize
	return cols[lz*chunkSize+lx]
}

func (t *terrain) generateChunk(cc chunkCoord) []column {
	cols := make([]column, chunkSize*chunkSize)
	for lz := 0; lz < chunkSize; lz++ {
		for lx := 0; lx < chunkSize; lx++ {
			cols[lz*chunkSize+lx] = t.genColumn(cc.X*chunkSize+lx, cc.Z*chunkSize+lz)
		}
	}
	return cols
}

func (t *terrain) genColumn(x, z int) column {
	seed := tileSeed(x+t.seed, z-t.seed)
	col := column{zone: zoneByDistance(x, z)}
	switch col.zone {
	case zoneForest:
		col.tree = seed%5 == 0
	case zoneQuarry:
		col.rock = seed%4 == 0
	case zoneWild:
		switch {
		case seed%7 == 0:
			col.water = true
		case seed%3 == 0:
			col.tree = true
		}
	}
	switch {
	case seed%17 == 0:
		col.oreY, col.oreKey = SurfaceY-5-seed%8, "coal_ore"
	case seed%41 == 0:
		col.oreY, col.oreKey = SurfaceY-12-seed%10, "iron_ore"
	}
	return col
}

func zoneByDistance(x, z int) zone {
	d := int(math.Abs(float64(x)) + math.Abs(float64(z)))
	switch {
	case d <= 6:
		return zoneSafe
	case d <= 20:
		return zoneForest
	case d <= 35:
		return zoneQuarry
	default:
		return zoneWild
	}
}

func tileSeed(x, z int) int {
	v := x*73856093 ^ z*19349663
	if v < 0 {
		v = -v
	}
	return v
}

func floorDiv(a, b int) int {
	if a >= 0 {
		return a / b
	}
	return -(((-a) + b - 1) / b)
}
