package execution

import "fmt"

type Kind int

const (
	KindSuccess Kind = iota
	KindFault
	KindTimedOut
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFault:
		return "fault"
	case KindTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Scope string

const (
	ScopeInner Scope = "inner"
	ScopeOuter Scope = "outer"
)

// Frame is one stack frame. Line and Column are 1-based; zero means the
// frame has no source position (native code).
type Frame struct {
	Function string
	File     string
	Line     int
	Column   int
}

func (f Frame) HasPosition() bool {
	return f.File != "" && f.Line > 0
}

// Fault is a raised execution error with the stack it was raised from,
// innermost frame first.
type Fault struct {
	Message string
	Frames  []Frame
}

func (f Fault) Error() string {
	return f.Message
}

// Outcome is the single result of executing a submission.
type Outcome struct {
	Kind  Kind
	Scope Scope
	Fault Fault
}

func Success() Outcome {
	return Outcome{Kind: KindSuccess}
}

func Failed(f Fault) Outcome {
	return Outcome{Kind: KindFault, Fault: f}
}

func TimedOut(scope Scope, msg string) Outcome {
	return Outcome{Kind: KindTimedOut, Scope: scope, Fault: Fault{Message: msg}}
}

func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Label is the outcome name recorded in run logs and metrics.
func (o Outcome) Label() string {
	if o.Kind == KindTimedOut {
		return "timeout_" + string(o.Scope)
	}
	return o.Kind.String()
}
