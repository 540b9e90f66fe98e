// Package subscription holds client subscriptions to watched resources
// and their threshold conditions.
//
// Subscriptions are read-only to the notification pipeline. The
// repository returns each one with its full condition list so filtering
// never goes back to the store.
package subscription
