package world

import "testing"

func TestClockPhaseCycle(t *testing.T) {
	clock := NewClock(ClockConfig{DayTicks: 24000})

	phase, remain := clock.PhaseAt(0)
	if phase != PhaseDay {
		t.Fatalf("expected day at start, got %s", phase)
	}
	if remain != 12000 {
		t.Fatalf("expected 12000 ticks remain, got %d", remain)
	}

	phase, remain = clock.PhaseAt(14000)
	if phase != PhaseNight {
		t.Fatalf("expected night at 14000, got %s", phase)
	}
	if remain != 9000 {
		t.Fatalf("expected 9000 ticks remain, got %d", remain)
	}

	phase, _ = clock.PhaseAt(23500)
	if phase != PhaseSunrise {
		t.Fatalf("expected sunrise at 23500, got %s", phase)
	}

	phase, _ = clock.PhaseAt(24000 + 10)
	if phase != PhaseDay {
		t.Fatalf("expected cycle back to day, got %s", phase)
	}
}

func TestClockStartOffset(t *testing.T) {
	clock := NewClock(ClockConfig{DayTicks: 24000, StartTicks: 12500})
	if phase, _ := clock.PhaseAt(0); phase != PhaseSunset {
		t.Fatalf("expected sunset with start offset, got %s", phase)
	}
}
