package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is a named unit of work with JSON encoded arguments.
type Task struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`

	// NotBefore is set by brokers that carry a delay across a process
	// boundary. Zero means run immediately.
	NotBefore time.Time `json:"not_before,omitzero"`
}

// NewTask encodes args and assigns a fresh task ID.
func NewTask(name string, args any) (Task, error) {
	if name == "" {
		return Task{}, fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Task{}, fmt.Errorf("%w: encoding %s args: %w", ErrInvalidTask, name, err)
	}
	return Task{ID: uuid.NewString(), Name: name, Args: raw}, nil
}

// Decode unmarshals the task arguments into v.
func (t Task) Decode(v any) error {
	if err := json.Unmarshal(t.Args, v); err != nil {
		return fmt.Errorf("%w: decoding %s args: %w", ErrInvalidTask, t.Name, err)
	}
	return nil
}

// Broker accepts tasks for execution. Implementations are safe for
// concurrent use.
type Broker interface {
	// Enqueue schedules task to run after delay. A delay <= 0 runs it as
	// soon as a worker is free. Enqueue does not wait for the task to run.
	Enqueue(ctx context.Context, task Task, delay time.Duration) error
}

// Handler runs one task.
type Handler func(ctx context.Context, task Task) error

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
