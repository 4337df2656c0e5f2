package world

import "strings"

const (
	BlockAir           = "air"
	BlockCraftingTable = "crafting_table"
	BlockFurnace       = "furnace"
	BlockChest         = "chest"
)

// Match selects blocks by name. An empty match selects nothing.
type Match struct {
	Names []string `json:"names"`
}

func MatchNames(names ...string) Match {
	return Match{Names: names}
}

func (m Match) Matches(block string) bool {
	for _, n := range m.Names {
		if n == block {
			return true
		}
	}
	return false
}

// Solid reports whether an agent cannot occupy a cell holding block.
func Solid(block string) bool {
	switch block {
	case BlockAir, "water", "grass", "tall_grass", "torch":
		return false
	}
	return !strings.HasSuffix(block, "_sapling")
}

// NormalizeItem strips the namespace prefix used in commands.
func NormalizeItem(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "minecraft:")
}
