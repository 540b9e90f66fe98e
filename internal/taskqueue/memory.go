package taskqueue

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
)

// Memory broker defaults.
const (
	defaultWorkers   = 4
	defaultQueueSize = 1024
)

// MemoryOptions configures a MemoryBroker. Zero values take defaults.
type MemoryOptions struct {
	Workers int

	// QueueSize is a soft limit on the backlog of tasks waiting for a
	// worker. Enqueue never blocks; crossing the limit logs a warning.
	QueueSize int

	Clock  clock.Clock
	Logger Logger
}

// MemoryBroker runs tasks on an in-process worker pool.
//
// Immediate tasks go onto an unbounded pending list, so a handler may
// enqueue follow-up tasks without waiting for a free worker. Delayed
// tasks wait on the broker's clock. Nothing is persisted: tasks still
// pending or waiting when Close is called are dropped.
//
// Thread Safety: all methods are safe for concurrent use.
type MemoryBroker struct {
	handler   Handler
	clock     clock.Clock
	logger    Logger
	workers   int
	queueSize int

	// ready holds at most one wake-up for idle workers.
	ready chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending []Task
	closed  bool
	started bool
	nextID  uint64
	timers  map[uint64]clock.Timer
}

// NewMemoryBroker creates a broker that passes every task to handler.
//
// The broker does nothing until Start is called; tasks enqueued before
// then are held and run once the workers are up.
//
// Parameters:
//   - handler: Called once per task, usually Dispatcher.Dispatch
//   - opts: Worker count, backlog warning level, clock and logger
//
// Returns:
//   - *MemoryBroker: Broker ready to accept tasks
func NewMemoryBroker(handler Handler, opts MemoryOptions) *MemoryBroker {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &MemoryBroker{
		handler:   handler,
		clock:     opts.Clock,
		logger:    opts.Logger,
		workers:   opts.Workers,
		queueSize: opts.QueueSize,
		ready:     make(chan struct{}, 1),
		done:      make(chan struct{}),
		timers:    make(map[uint64]clock.Timer),
	}
}

// Start launches the worker pool. Handlers run with ctx; cancelling it
// stops the workers as Close does.
func (b *MemoryBroker) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	for range b.workers {
		b.wg.Add(1)
		go b.work(ctx)
	}
	// Tasks enqueued before Start are already pending.
	b.signal()
}

func (b *MemoryBroker) work(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		if task, ok := b.pop(); ok {
			b.run(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-b.ready:
		}
	}
}

// signal wakes one idle worker. A wake-up already waiting is enough.
func (b *MemoryBroker) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// pop takes the oldest pending task. If more remain it passes the
// wake-up on so another idle worker picks up the next one.
func (b *MemoryBroker) pop() (Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return Task{}, false
	}
	task := b.pending[0]
	b.pending[0] = Task{}
	b.pending = b.pending[1:]
	if len(b.pending) > 0 {
		b.signal()
	}
	return task, true
}

// push appends task to the pending list. It reports false once the
// broker is closed. Callers hold b.mu.
func (b *MemoryBroker) push(task Task) bool {
	if b.closed {
		return false
	}
	b.pending = append(b.pending, task)
	if len(b.pending) == b.queueSize+1 {
		b.logger.Warn("task backlog above queue size", "queue_size", b.queueSize, "task", task.Name)
	}
	b.signal()
	return true
}

func (b *MemoryBroker) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("task handler panic recovered", "task", task.Name, "task_id", task.ID, "panic", r)
		}
	}()

	if err := b.handler(ctx, task); err != nil {
		b.logger.Error("task failed", "task", task.Name, "task_id", task.ID, "error", err)
	}
}

// Enqueue queues task, or arms a timer that queues it after delay.
//
// Enqueue never waits for a worker, so handlers may call it freely.
//
// Parameters:
//   - ctx: Checked once on entry; a done context rejects the task
//   - task: Task to run
//   - delay: Zero or negative runs the task as soon as a worker is free
//
// Returns:
//   - error: ErrBrokerClosed after Close, or ctx.Err()
func (b *MemoryBroker) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	if delay <= 0 {
		b.push(task)
		return nil
	}

	id := b.nextID
	b.nextID++
	b.timers[id] = b.clock.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.timers, id)
		if !b.push(task) {
			b.logger.Warn("delayed task dropped at shutdown", "task", task.Name, "task_id", task.ID)
		}
	})
	return nil
}

// Pending reports how many tasks are waiting for a worker.
func (b *MemoryBroker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Delayed reports how many tasks are waiting on a timer.
func (b *MemoryBroker) Delayed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Close stops the broker.
//
// Steps:
//  1. Mark the broker closed so Enqueue and firing timers are refused
//  2. Stop every armed timer
//  3. Stop the workers and wait for running handlers to return
//  4. Drop whatever is still pending, logging the count
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()

	b.mu.Lock()
	dropped := len(b.pending)
	b.pending = nil
	b.mu.Unlock()
	if dropped > 0 {
		b.logger.Warn("queued tasks dropped at shutdown", "count", dropped)
	}
	return nil
}
