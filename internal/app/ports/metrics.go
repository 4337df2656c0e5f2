package ports

import "time"

// OutcomeSuccess is the outcome label of a step that ran to completion.
const OutcomeSuccess = "success"

type StepMetrics interface {
	RecordStep(outcome string, elapsed time.Duration)
	RecordRescue()
	RecordSessionLost()
}
