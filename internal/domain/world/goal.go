package world

import "errors"

type GoalKind string

const (
	GoalBlock      GoalKind = "block"
	GoalNear       GoalKind = "near"
	GoalXZ         GoalKind = "xz"
	GoalNearXZ     GoalKind = "near_xz"
	GoalY          GoalKind = "y"
	GoalGetToBlock GoalKind = "get_to_block"
)

var ErrInvalidGoal = errors.New("invalid goal")

// Goal is a movement target. Range is only used by the near variants.
type Goal struct {
	Kind  GoalKind `json:"kind"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Z     float64  `json:"z"`
	Range float64  `json:"range,omitempty"`
}

func (g Goal) Validate() error {
	switch g.Kind {
	case GoalBlock, GoalXZ, GoalY, GoalGetToBlock:
		return nil
	case GoalNear, GoalNearXZ:
		if g.Range < 0 {
			return ErrInvalidGoal
		}
		return nil
	default:
		return ErrInvalidGoal
	}
}

// Target returns the point the agent should head for from pos.
func (g Goal) Target(pos Vec3) Vec3 {
	switch g.Kind {
	case GoalXZ, GoalNearXZ:
		return Vec3{X: g.X + 0.5, Y: pos.Y, Z: g.Z + 0.5}
	case GoalY:
		return Vec3{X: pos.X, Y: g.Y, Z: pos.Z}
	default:
		return Vec3{X: g.X + 0.5, Y: g.Y, Z: g.Z + 0.5}
	}
}

// Reached reports whether pos satisfies the goal.
func (g Goal) Reached(pos Vec3) bool {
	cell := pos.Cell()
	switch g.Kind {
	case GoalBlock:
		return cell.X == int(g.X) && cell.Y == int(g.Y) && cell.Z == int(g.Z)
	case GoalNear:
		return pos.DistanceTo(Vec3{X: g.X + 0.5, Y: g.Y, Z: g.Z + 0.5}) <= g.Range
	case GoalXZ:
		return cell.X == int(g.X) && cell.Z == int(g.Z)
	case GoalNearXZ:
		dx, dz := pos.X-(g.X+0.5), pos.Z-(g.Z+0.5)
		return dx*dx+dz*dz <= g.Range*g.Range
	case GoalY:
		return cell.Y == int(g.Y)
	case GoalGetToBlock:
		return pos.DistanceTo(Vec3{X: g.X + 0.5, Y: g.Y, Z: g.Z + 0.5}) <= 1.5
	}
	return true
}
