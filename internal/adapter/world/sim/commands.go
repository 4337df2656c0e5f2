package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"
)

// IssueIntent applies one command. Plain text is chat; slash commands
// follow the server command syntax. Failures are reported as onError
// events, the way a server answers a bad command in chat.
func (w *World) IssueIntent(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ports.ErrWorldClosed
	}

	cmd = strings.TrimSpace(cmd)
	fields := strings.Fields(cmd)
	var events []world.Event
	switch {
	case cmd == "" || cmd == "noop":
	case strings.HasPrefix(cmd, "/"):
		events = w.command(fields)
	case fields[0] == "save" && len(fields) > 1:
		events = []world.Event{world.NewEvent(world.KindSave, map[string]any{world.KindSave: strings.Join(fields[1:], " ")})}
	case fields[0] == "dig" && len(fields) == 4:
		events = w.dig(fields[1:])
	case fields[0] == "place" && len(fields) == 5:
		events = w.place(fields[1], fields[2:])
	default:
		events = []world.Event{world.ChatEvent(cmd)}
	}
	w.emit(events...)
	return nil
}

func (w *World) command(fields []string) []world.Event {
	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]
	switch name {
	case "tick":
		return w.tickCommand(args)
	case "tp":
		return w.teleport(args)
	case "give":
		return w.give(args)
	case "clear":
		w.mu.Lock()
		w.inventory = map[string]int{}
		w.equipment = [6]*string{}
		w.mu.Unlock()
		return []world.Event{w.inventoryEvent()}
	case "kill":
		w.mu.Lock()
		w.health, w.food = 20, 20
		w.pos = w.cfg.Spawn
		w.goal = nil
		if w.gamerules["keepInventory"] != "true" {
			w.inventory = map[string]int{}
		}
		w.mu.Unlock()
		return nil
	case "item":
		return w.replaceItem(args)
	case "setblock":
		return w.setBlock(args)
	case "gamerule":
		if len(args) != 2 {
			return usage("/gamerule <rule> <value>")
		}
		w.mu.Lock()
		w.gamerules[args[0]] = args[1]
		w.mu.Unlock()
		return nil
	case "spreadplayers":
		w.mu.Lock()
		x := w.pos.X + float64(w.rng.IntN(601)-300)
		z := w.pos.Z + float64(w.rng.IntN(601)-300)
		w.goal = nil
		w.mu.Unlock()
		y := w.terrain.surfaceAt(int(x), int(z))
		w.mu.Lock()
		w.pos = world.Vec3{X: float64(int(x)) + 0.5, Y: float64(y), Z: float64(int(z)) + 0.5}
		w.mu.Unlock()
		return nil
	case "pause":
		w.mu.Lock()
		w.paused = true
		w.mu.Unlock()
		return nil
	default:
		return []world.Event{world.ErrorEvent("Unknown or incomplete command: /" + name)}
	}
}

func (w *World) tickCommand(args []string) []world.Event {
	if len(args) != 1 {
		return usage("/tick freeze|unfreeze")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch args[0] {
	case "freeze":
		w.frozen = true
	case "unfreeze":
		w.frozen = false
		w.paused = false
	default:
		return usage("/tick freeze|unfreeze")
	}
	return nil
}

func (w *World) teleport(args []string) []world.Event {
	if len(args) != 4 || args[0] != "@s" {
		return usage("/tp @s <x> <y> <z>")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	x, errX := coord(args[1], w.pos.X)
	y, errY := coord(args[2], w.pos.Y)
	z, errZ := coord(args[3], w.pos.Z)
	if errX != nil || errY != nil || errZ != nil {
		return usage("/tp @s <x> <y> <z>")
	}
	w.pos = world.Vec3{X: x, Y: y, Z: z}
	w.velocity = world.Vec3{}
	return nil
}

// coord parses an absolute or ~relative coordinate.
func coord(s string, base float64) (float64, error) {
	if strings.HasPrefix(s, "~") {
		if s == "~" {
			return base, nil
		}
		d, err := strconv.ParseFloat(s[1:], 64)
		return base + d, err
	}
	return strconv.ParseFloat(s, 64)
}

func (w *World) give(args []string) []world.Event {
	if len(args) < 2 || args[0] != "@s" {
		return usage("/give @s <item> [count]")
	}
	n := 1
	if len(args) > 2 {
		v, err := strconv.Atoi(args[2])
		if err != nil || v < 1 {
			return usage("/give @s <item> [count]")
		}
		n = v
	}
	item := world.NormalizeItem(args[1])
	w.mu.Lock()
	w.inventory[item] += n
	w.mu.Unlock()
	return []world.Event{w.inventoryEvent()}
}

func (w *World) replaceItem(args []string) []world.Event {
	// /item replace entity @s <slot> with <item>
	if len(args) != 6 || args[0] != "replace" || args[1] != "entity" || args[2] != "@s" || args[4] != "with" {
		return usage("/item replace entity @s <slot> with <item>")
	}
	slot := -1
	for i, s := range world.EquipmentSlots {
		if s == args[3] {
			slot = i
		}
	}
	if slot < 0 {
		return []world.Event{world.ErrorEvent("Unknown slot: " + args[3])}
	}
	item := world.NormalizeItem(args[5])
	w.mu.Lock()
	w.equipment[slot] = &item
	w.mu.Unlock()
	return nil
}

func (w *World) setBlock(args []string) []world.Event {
	if len(args) < 4 {
		return usage("/setblock <x> <y> <z> <block> [destroy]")
	}
	c, err := w.cellArgs(args[:3])
	if err != nil {
		return usage("/setblock <x> <y> <z> <block> [destroy]")
	}
	block := world.NormalizeItem(args[3])
	prev := w.terrain.setBlock(c, block)
	events := []world.Event{blockEvent(c, prev, block)}
	if len(args) > 4 && args[4] == "destroy" && prev != world.BlockAir {
		w.mu.Lock()
		drops := w.gamerules["doTileDrops"] != "false"
		if drops {
			w.inventory[prev]++
		}
		w.mu.Unlock()
		if drops {
			events = append(events, w.inventoryEvent())
		}
	}
	return events
}

func (w *World) dig(args []string) []world.Event {
	c, err := w.cellArgs(args)
	if err != nil {
		return usage("dig <x> <y> <z>")
	}
	prev := w.terrain.blockAt(c)
	if prev == world.BlockAir || prev == "bedrock" || prev == "water" {
		return []world.Event{world.ErrorEvent(fmt.Sprintf("Cannot dig %s at %d %d %d", prev, c.X, c.Y, c.Z))}
	}
	w.terrain.setBlock(c, world.BlockAir)
	w.mu.Lock()
	w.inventory[dropOf(prev)]++
	w.mu.Unlock()
	return []world.Event{blockEvent(c, prev, world.BlockAir), w.inventoryEvent()}
}

func (w *World) place(item string, args []string) []world.Event {
	c, err := w.cellArgs(args)
	if err != nil {
		return usage("place <item> <x> <y> <z>")
	}
	item = world.NormalizeItem(item)
	w.mu.Lock()
	have := w.inventory[item]
	w.mu.Unlock()
	if have == 0 {
		return []world.Event{world.ErrorEvent("No " + item + " in inventory")}
	}
	if b := w.terrain.blockAt(c); world.Solid(b) {
		return []world.Event{world.ErrorEvent(fmt.Sprintf("Cannot place %s at %d %d %d: occupied by %s", item, c.X, c.Y, c.Z, b))}
	}
	prev := w.terrain.setBlock(c, item)
	w.mu.Lock()
	w.inventory[item]--
	if w.inventory[item] == 0 {
		delete(w.inventory, item)
	}
	w.mu.Unlock()
	return []world.Event{blockEvent(c, prev, item), w.inventoryEvent()}
}

func (w *World) cellArgs(args []string) (world.Cell, error) {
	w.mu.Lock()
	base := w.pos.Floored()
	w.mu.Unlock()
	x, err := coord(args[0], base.X)
	if err != nil {
		return world.Cell{}, err
	}
	y, err := coord(args[1], base.Y)
	if err != nil {
		return world.Cell{}, err
	}
	z, err := coord(args[2], base.Z)
	if err != nil {
		return world.Cell{}, err
	}
	return world.Vec3{X: x, Y: y, Z: z}.Cell(), nil
}

func (w *World) inventoryEvent() world.Event {
	w.mu.Lock()
	inv := make(map[string]any, len(w.inventory))
	for k, v := range w.inventory {
		inv[k] = v
	}
	w.mu.Unlock()
	return world.NewEvent(world.KindInventoryChange, map[string]any{world.KindInventoryChange: inv})
}

func blockEvent(c world.Cell, prev, block string) world.Event {
	return world.NewEvent(world.KindBlockChange, map[string]any{
		world.KindBlockChange: map[string]any{
			"position": c,
			"previous": prev,
			"block":    block,
		},
	})
}

func dropOf(block string) string {
	switch block {
	case "stone":
		return "cobblestone"
	case "grass_block":
		return "dirt"
	case "coal_ore":
		return "coal"
	case "iron_ore":
		return "raw_iron"
	case "oak_leaves":
		return "oak_sapling"
	}
	return block
}

func usage(syntax string) []world.Event {
	return []world.Event{world.ErrorEvent("Incorrect argument for command, expected " + syntax)}
}
