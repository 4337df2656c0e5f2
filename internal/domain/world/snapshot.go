package world

// EquipmentSlots is the order of Status.Equipment.
var EquipmentSlots = [6]string{"armor.head", "armor.chest", "armor.legs", "armor.feet", "weapon.mainhand", "weapon.offhand"}

type Status struct {
	Health        float64            `json:"health"`
	Food          float64            `json:"food"`
	Saturation    float64            `json:"saturation"`
	Oxygen        float64            `json:"oxygen"`
	Position      Vec3               `json:"position"`
	Velocity      Vec3               `json:"velocity"`
	Yaw           float64            `json:"yaw"`
	Pitch         float64            `json:"pitch"`
	OnGround      bool               `json:"onGround"`
	Equipment     [6]*string         `json:"equipment"`
	Name          string             `json:"name"`
	IsInWater     bool               `json:"isInWater"`
	IsInLava      bool               `json:"isInLava"`
	Biome         string             `json:"biome"`
	Entities      map[string]float64 `json:"entities"`
	TimeOfDay     string             `json:"timeOfDay"`
	InventoryUsed int                `json:"inventoryUsed"`
	ElapsedTime   int64              `json:"elapsedTime"`
}

// Snapshot is a full point-in-time capture of the agent and its surroundings.
type Snapshot struct {
	Voxels       []string       `json:"voxels"`
	Status       Status         `json:"status"`
	Inventory    map[string]int `json:"inventory"`
	NearbyChests map[string]any `json:"nearbyChests"`
	BlockRecords []string       `json:"blockRecords"`
}

func (s Snapshot) Has(item string) bool {
	return s.Inventory[item] > 0
}

// Fields flattens the snapshot into an event payload.
func (s Snapshot) Fields() map[string]any {
	inv := make(map[string]any, len(s.Inventory))
	for k, v := range s.Inventory {
		inv[k] = v
	}
	chests := s.NearbyChests
	if chests == nil {
		chests = map[string]any{}
	}
	return map[string]any{
		"voxels":       nonNil(s.Voxels),
		"status":       s.Status,
		"inventory":    inv,
		"nearbyChests": chests,
		"blockRecords": nonNil(s.BlockRecords),
	}
}

// Entries renders the snapshot as trailing response entries.
func (s Snapshot) Entries() []Event {
	return []Event{NewEvent(KindObserve, s.Fields())}
}

// Merge returns payload with the snapshot fields added; existing keys win.
func (s Snapshot) Merge(payload map[string]any) map[string]any {
	out := s.Fields()
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
