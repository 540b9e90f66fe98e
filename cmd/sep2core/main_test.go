package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/sep2-core/internal/infrastructure/config"
	"github.com/nerrad567/sep2-core/internal/infrastructure/logging"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SEP2_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidNotificationConfig verifies config validation stops startup.
func TestRun_InvalidNotificationConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEP2_CONFIG", writeConfig(t, `
database:
  path: "`+filepath.Join(dir, "sep2.db")+`"
notification:
  queue: kafka
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an unknown queue kind")
	}
}

// TestRun_MemoryQueueShutdown starts the full stack on the memory queue and
// checks it stops cleanly when the context ends.
func TestRun_MemoryQueueShutdown(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEP2_CONFIG", writeConfig(t, `
database:
  path: "`+filepath.Join(dir, "sep2.db")+`"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 18089
logging:
  level: error
  format: text
  output: stdout
notification:
  enabled: true
  queue: memory
  transmit_timeout: 5s
  retry_delays: [1s, 2s]
`))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sep2.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestRun_NotificationsDisabled verifies startup without a task queue.
func TestRun_NotificationsDisabled(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEP2_CONFIG", writeConfig(t, `
database:
  path: "`+filepath.Join(dir, "sep2.db")+`"
api:
  host: "127.0.0.1"
  port: 18090
logging:
  level: error
  format: text
  output: stdout
notification:
  enabled: false
  queue: mqtt
`))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The mqtt queue is never dialled while notifications are disabled.
	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

// TestNewTaskBroker_DeliversOnlyAfterStart verifies the memory broker built
// by newTaskBroker holds tasks until start, so handlers registered after
// construction still receive every task.
func TestNewTaskBroker_DeliversOnlyAfterStart(t *testing.T) {
	cfg := &config.Config{
		Notification: config.NotificationConfig{Queue: config.QueueMemory, Workers: 1},
	}

	dispatcher := taskqueue.NewDispatcher()
	tb, err := newTaskBroker(cfg, dispatcher, logging.Default())
	if err != nil {
		t.Fatalf("newTaskBroker() error = %v", err)
	}
	defer tb.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tb.Enqueue(ctx, taskqueue.Task{ID: "1", Name: "check"}, 0); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	handled := make(chan string, 1)
	dispatcher.Register("check", func(_ context.Context, task taskqueue.Task) error {
		handled <- task.ID
		return nil
	})
	if err := tb.start(ctx); err != nil {
		t.Fatalf("start() error = %v", err)
	}

	select {
	case id := <-handled:
		if id != "1" {
			t.Errorf("handled task ID = %q, want 1", id)
		}
	case <-ctx.Done():
		t.Fatal("task enqueued before start was never handled")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("SEP2_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("SEP2_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
