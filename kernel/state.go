package kernel

// State is a node of the exchange state machine:
//
//	AwaitDecision -> ExecutingTools -> AwaitDecision ... -> Done | TimedOut | Failed
type State int

const (
	AwaitDecision State = iota
	ExecutingTools
	Done
	TimedOut
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitDecision:
		return "AWAIT_DECISION"
	case ExecutingTools:
		return "EXECUTING_TOOLS"
	case Done:
		return "DONE"
	case TimedOut:
		return "TIMED_OUT"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == Done || s == TimedOut || s == Failed
}

func (s State) status() Status {
	switch s {
	case Done:
		return StatusDone
	case TimedOut:
		return StatusTimedOut
	default:
		return StatusFailed
	}
}
