// Package taskqueue moves named units of work between the code that
// schedules them and the handlers that run them.
//
// A Broker accepts a Task and an optional delay. MemoryBroker runs tasks
// on an in-process worker pool; MQTTBroker publishes them to
// <prefix>/tasks/<name> and consumes through a shared subscription, so
// one process of the consumer group picks each of them up. Both hand
// received tasks to a Dispatcher, which routes by name.
//
// Delivery is at least once. Handlers must tolerate a task running more
// than once.
package taskqueue
