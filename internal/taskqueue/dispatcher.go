package taskqueue

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Dispatcher routes tasks to handlers by name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any earlier handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Names lists registered task names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler registered for task.Name.
func (d *Dispatcher) Dispatch(ctx context.Context, task Task) error {
	d.mu.RLock()
	h, ok := d.handlers[task.Name]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, task.Name)
	}
	return h(ctx, task)
}
