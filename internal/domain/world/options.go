package world

// StartOptions configure a new world session.
type StartOptions struct {
	Port      int            `json:"port"`
	WaitTicks int            `json:"waitTicks"`
	Reset     string         `json:"reset,omitempty"`
	Inventory map[string]int `json:"inventory,omitempty"`
	Equipment []*string      `json:"equipment,omitempty"`
	Position  *Vec3          `json:"position,omitempty"`
	Spread    bool           `json:"spread,omitempty"`
}

func (o StartOptions) HardReset() bool {
	return o.Reset == "hard"
}
