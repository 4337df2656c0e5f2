package world

type Phase string

const (
	PhaseDay     Phase = "day"
	PhaseSunset  Phase = "sunset"
	PhaseNight   Phase = "night"
	PhaseSunrise Phase = "sunrise"
)

type ClockConfig struct {
	DayTicks   int64
	StartTicks int64
}

// Clock maps elapsed world ticks onto the day cycle.
type Clock struct {
	cfg ClockConfig
}

func NewClock(cfg ClockConfig) Clock {
	if cfg.DayTicks <= 0 {
		cfg.DayTicks = 24000
	}
	if cfg.StartTicks < 0 {
		cfg.StartTicks = 0
	}
	return Clock{cfg: cfg}
}

func DefaultClock() Clock {
	return NewClock(ClockConfig{StartTicks: 1000})
}

// PhaseAt returns the phase at elapsed ticks and how many ticks remain in it.
func (c Clock) PhaseAt(elapsed int64) (Phase, int64) {
	if elapsed < 0 {
		elapsed = 0
	}
	day := c.cfg.DayTicks
	offset := (elapsed + c.cfg.StartTicks) % day
	// Boundaries follow the 24000-tick cycle scaled to DayTicks.
	sunset := day * 12000 / 24000
	night := day * 13000 / 24000
	sunrise := day * 23000 / 24000
	switch {
	case offset < sunset:
		return PhaseDay, sunset - offset
	case offset < night:
		return PhaseSunset, night - offset
	case offset < sunrise:
		return PhaseNight, sunrise - offset
	default:
		return PhaseSunrise, day - offset
	}
}
