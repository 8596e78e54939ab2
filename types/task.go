package types

import (
	"github.com/google/uuid"
)

// Task is the unit of work submitted to the orchestration core. It is created
// at request entry and mutated only through ExecutionContext operations.
type Task struct {
	ID      string `json:"id"`
	Request string `json:"request"`
	// Attributes is the initial key/value state seeded into the execution
	// context. Insertion order is irrelevant.
	Attributes map[string]any `json:"attributes,omitempty"`
	// Complexity is set by the intent classifier on a 0-10 scale.
	Complexity int `json:"complexity"`
}

// NewTask creates a Task with a fresh identifier and the given request text.
func NewTask(request string) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Request:    request,
		Attributes: make(map[string]any),
	}
}

// SetAttribute seeds an initial attribute on the task.
func (t *Task) SetAttribute(key string, value any) {
	if t.Attributes == nil {
		t.Attributes = make(map[string]any)
	}
	t.Attributes[key] = value
}
