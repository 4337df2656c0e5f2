// Package metrics combines step metric sinks.
package metrics

import (
	"time"

	"agentbridge/internal/app/ports"
)

// Fanout forwards every record to each sink in order.
type Fanout []ports.StepMetrics

func (f Fanout) RecordStep(outcome string, elapsed time.Duration) {
	for _, m := range f {
		m.RecordStep(outcome, elapsed)
	}
}

func (f Fanout) RecordRescue() {
	for _, m := range f {
		m.RecordRescue()
	}
}

func (f Fanout) RecordSessionLost() {
	for _, m := range f {
		m.RecordSessionLost()
	}
}
