package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trustmesh/agentmarket/internal/types"
)

// TaskTable is the orchestrator's in-memory task ledger, guarded by a single
// coarse lock per spec §5.
type TaskTable struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task
}

// NewTaskTable builds an empty task table.
func NewTaskTable() *TaskTable {
	return &TaskTable{tasks: make(map[string]*types.Task)}
}

// IssueTask creates a new pending task with a unique id.
func (t *TaskTable) IssueTask(consumerID string, accountID types.AccountId, taskType string) *types.Task {
	task := &types.Task{
		TaskID:          uuid.NewString(),
		Type:            taskType,
		ConsumerAgentID: consumerID,
		AccountID:       accountID,
		State:           types.TaskPending,
		CreatedAt:       time.Now(),
	}

	t.mu.Lock()
	t.tasks[task.TaskID] = task
	t.mu.Unlock()

	return task
}

// UpdateStatus applies a state transition. Transitions to the same state
// are no-ops; illegal transitions return an error and leave state unchanged.
func (t *TaskTable) UpdateStatus(taskID string, state types.TaskState, result *types.TrustScore, taskErr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}

	if !types.CanTransition(task.State, state) {
		return fmt.Errorf("illegal task transition %s -> %s", task.State, state)
	}
	if task.State == state {
		return nil // no-op
	}

	task.State = state
	if result != nil {
		task.Result = result
	}
	if taskErr != "" {
		task.Error = taskErr
	}
	if state.IsTerminal() {
		now := time.Now()
		task.CompletedAt = &now
	}
	return nil
}

// Get returns a copy of the task with taskID.
func (t *TaskTable) Get(taskID string) (types.Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return types.Task{}, false
	}
	return *task, true
}
