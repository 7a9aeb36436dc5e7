package pipeline

import "fmt"

// Status is the lifecycle position of a pipeline.
type Status int

const (
	Pending Status = iota
	Running
	Done
	Failed
)

// State is the pipeline state machine position:
// PENDING -> STAGE1_RUNNING -> STAGE1_DONE -> STAGE2_RUNNING -> ... | FAILED.
type State struct {
	// Stage is the 1-based position, in execution order, of the stage the
	// status refers to. It is 0 while pending.
	Stage  int
	Status Status
}

func (s State) String() string {
	switch s.Status {
	case Pending:
		return "PENDING"
	case Running:
		return fmt.Sprintf("STAGE%d_RUNNING", s.Stage)
	case Done:
		return fmt.Sprintf("STAGE%d_DONE", s.Stage)
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}
