package types

import "time"

// TaskState is the lifecycle state of an orchestrator-issued task.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskCompleted  TaskState = "completed"
	TaskFailed     TaskState = "failed"
)

// Task represents one unit of work issued by the orchestrator to a consumer.
type Task struct {
	TaskID           string      `json:"taskId"`
	Type             string      `json:"type"`
	ConsumerAgentID  string      `json:"consumerAgentId"`
	AccountID        AccountId   `json:"accountId"`
	State            TaskState   `json:"state"`
	CreatedAt        time.Time   `json:"createdAt"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
	Result           *TrustScore `json:"result,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// allowedTransitions enumerates the legal task state transitions. Transitions
// to the same state are no-ops rather than errors.
var allowedTransitions = map[TaskState]map[TaskState]bool{
	TaskPending:    {TaskInProgress: true, TaskFailed: true},
	TaskInProgress: {TaskCompleted: true, TaskFailed: true},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to TaskState) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// IsTerminal reports whether s is a terminal task state.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}
