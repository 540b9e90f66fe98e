// Package influxdb provides InfluxDB connectivity for SEP2 Core.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writes and health monitoring. The service
// uses it to record notification delivery attempts.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WritePoint("notification_delivery",
//	    map[string]string{"outcome": "sent"},
//	    map[string]any{"attempt": 0})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; write errors are
// delivered to the SetOnError callback.
package influxdb
