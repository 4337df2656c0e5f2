package session

import (
	"fmt"

	"agentbridge/internal/domain/world"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

var fixtures = []string{world.BlockCraftingTable, world.BlockFurnace}

// normalize hands back placed fixtures, tops up a chest for a full
// inventory and restores a lost iron pickaxe. Block drops are disabled
// while fixtures are removed so nothing is duplicated.
func (c *Controller) normalize(s *session) {
	ctx := s.ctx
	w := s.world
	c.intent(ctx, w, "/gamerule doTileDrops false")
	defer c.intent(ctx, w, "/gamerule doTileDrops true")

	for _, block := range fixtures {
		cells, err := w.FindNearestMatchingCells(ctx, world.MatchNames(block), c.cfg.FixtureRadius, 1)
		if err != nil {
			hlog.Warnf("session %s: find %s: %v", s.id, block, err)
			continue
		}
		if len(cells) == 0 {
			continue
		}
		p := cells[0]
		c.intent(ctx, w, fmt.Sprintf("/setblock %d %d %d air destroy", p.X, p.Y, p.Z))
		c.intent(ctx, w, "/give @s "+block)
	}

	snap, err := w.Observe(ctx)
	if err != nil {
		hlog.Warnf("session %s: observe during normalization: %v", s.id, err)
		return
	}
	if snap.Status.InventoryUsed >= c.cfg.ChestThreshold && !snap.Has(world.BlockChest) {
		c.intent(ctx, w, "/give @s chest")
	}
	if s.hadPickaxe && !snap.Has("iron_pickaxe") {
		c.intent(ctx, w, "/give @s iron_pickaxe")
	}
}
