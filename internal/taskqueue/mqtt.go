package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/nerrad567/sep2-core/internal/infrastructure/mqtt"
)

// Transport is the subset of *mqtt.Client used by MQTTBroker.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MQTTOptions configures an MQTTBroker. Zero values take defaults.
type MQTTOptions struct {
	QoS     byte
	Workers int
	Clock   clock.Clock
	Logger  Logger
}

// MQTTBroker publishes tasks to the MQTT task topics and runs tasks it
// receives from them.
//
// A delay is carried as the task's NotBefore. The receiving process holds
// the task on its clock until then, so a delayed task is lost if that
// process stops before it fires.
type MQTTBroker struct {
	transport Transport
	topics    mqtt.Topics
	qos       byte
	clock     clock.Clock
	logger    Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	nextID  uint64
	timers  map[uint64]clock.Timer
}

// NewMQTTBroker creates a broker over transport.
//
// Enqueue works straight away; call Start to consume tasks.
//
// Parameters:
//   - transport: Connected MQTT client
//   - topics: Task topic layout and shared subscription group
//   - opts: QoS (default 1), worker limit, clock and logger
//
// Returns:
//   - *MQTTBroker: Broker ready to publish
func NewMQTTBroker(transport Transport, topics mqtt.Topics, opts MQTTOptions) *MQTTBroker {
	if opts.QoS == 0 {
		opts.QoS = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &MQTTBroker{
		transport: transport,
		topics:    topics,
		qos:       opts.QoS,
		clock:     opts.Clock,
		logger:    opts.Logger,
		sem:       make(chan struct{}, opts.Workers),
		timers:    make(map[uint64]clock.Timer),
	}
}

// Enqueue publishes task to its queue topic.
func (b *MQTTBroker) Enqueue(ctx context.Context, task Task, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBrokerClosed
	}

	if delay > 0 {
		task.NotBefore = b.clock.Now().Add(delay).UTC()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrInvalidTask, task.Name, err)
	}
	if err := b.transport.Publish(b.topics.Task(task.Name), payload, b.qos, false); err != nil {
		return fmt.Errorf("publishing %s task: %w", task.Name, err)
	}
	return nil
}

// Start subscribes to the task topics and runs received tasks with
// handler, at most Workers at a time.
//
// With topics.Group set the subscription is shared, so each published
// task is delivered to one broker in the group rather than to all of them.
//
// Parameters:
//   - ctx: Parent of the context handlers run with; Close cancels it
//   - handler: Called once per received task, usually Dispatcher.Dispatch
//
// Returns:
//   - error: ErrBrokerClosed after Close, or the subscribe failure
func (b *MQTTBroker) Start(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.handler = handler
	b.mu.Unlock()

	if err := b.transport.Subscribe(b.topics.SharedTasks(), b.qos, b.Receive); err != nil {
		return fmt.Errorf("subscribing to task queue: %w", err)
	}
	return nil
}

// Receive handles one message from a task topic.
func (b *MQTTBroker) Receive(topic string, payload []byte) error {
	name, ok := b.topics.TaskName(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidTask, topic)
	}

	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("%w: decoding message on %s: %w", ErrInvalidTask, topic, err)
	}
	if task.Name != name {
		return fmt.Errorf("%w: task %q published on %s", ErrInvalidTask, task.Name, topic)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.handler == nil {
		return ErrBrokerClosed
	}

	if wait := task.NotBefore.Sub(b.clock.Now()); !task.NotBefore.IsZero() && wait > 0 {
		id := b.nextID
		b.nextID++
		b.timers[id] = b.clock.AfterFunc(wait, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.timers, id)
			if !b.closed {
				b.spawn(task)
			}
		})
		return nil
	}

	b.spawn(task)
	return nil
}

// spawn runs task on its own goroutine once a worker slot is free.
// Callers hold b.mu.
func (b *MQTTBroker) spawn(task Task) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		select {
		case b.sem <- struct{}{}:
		case <-b.ctx.Done():
			return
		}
		defer func() { <-b.sem }()

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("task handler panic recovered", "task", task.Name, "task_id", task.ID, "panic", r)
			}
		}()
		if err := b.handler(b.ctx, task); err != nil {
			b.logger.Error("task failed", "task", task.Name, "task_id", task.ID, "error", err)
		}
	}()
}

// Delayed reports how many received tasks are waiting for NotBefore.
func (b *MQTTBroker) Delayed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Close stops pending timers, cancels running handlers and waits for them.
func (b *MQTTBroker) Close() error {
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
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	return nil
}
