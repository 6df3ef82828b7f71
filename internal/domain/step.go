package domain

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// Step is one planned unit of work within a session's plan. The plan is a
// total order: steps execute one at a time, in sequence, never concurrently
// within a session. Steps live in memory and are mirrored to TaskResult rows
// for durability.
type Step struct {
	StepID      string
	Description string
	TargetNode  string
	Status      StepStatus
	Result      string
	Error       string
}
