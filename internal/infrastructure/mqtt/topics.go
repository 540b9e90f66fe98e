package mqtt

import "strings"

// DefaultTopicPrefix roots every topic when Topics.Prefix is empty.
const DefaultTopicPrefix = "sep2"

// Topics builds SEP2 Core topic names under a deployment prefix.
//
//	topics := mqtt.Topics{Prefix: "sep2"}
//	topics.Task("transmit_notification")
//	// Returns: "sep2/tasks/transmit_notification"
type Topics struct {
	Prefix string

	// Group names the shared subscription task consumers join. The broker
	// hands each task message to one member of the group. Empty means a
	// plain subscription, so every subscriber receives every task.
	Group string
}

func (t Topics) root() string {
	if p := strings.Trim(t.Prefix, "/"); p != "" {
		return p
	}
	return DefaultTopicPrefix
}

// Task is the queue topic for tasks named name.
//
// Example: sep2/tasks/check_entity_changes
func (t Topics) Task(name string) string {
	return t.root() + "/tasks/" + name
}

// AllTasks matches every task queue topic.
//
// Example: sep2/tasks/+
func (t Topics) AllTasks() string {
	return t.root() + "/tasks/+"
}

// SharedTasks is the filter task consumers subscribe with. With a Group
// set it is an MQTT v5 shared subscription.
//
// Example: $share/sep2-core/sep2/tasks/+
func (t Topics) SharedTasks() string {
	if t.Group == "" {
		return t.AllTasks()
	}
	return "$share/" + t.Group + "/" + t.AllTasks()
}

// TaskName extracts the task name from a topic built by Task.
// A leading $share/<group>/ is ignored. It returns false for topics
// outside the task queue.
func (t Topics) TaskName(topic string) (string, bool) {
	if rest, ok := strings.CutPrefix(topic, "$share/"); ok {
		_, topic, ok = strings.Cut(rest, "/")
		if !ok {
			return "", false
		}
	}
	name, ok := strings.CutPrefix(topic, t.root()+"/tasks/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// SystemStatus carries the retained online/offline status and LWT.
//
// Example: sep2/system/status
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// AllTopics matches everything under the prefix.
func (t Topics) AllTopics() string {
	return t.root() + "/#"
}
