// Package config loads SEP2 Core configuration.
//
// Values come from hardcoded defaults, then the YAML file, then SEP2_*
// environment variables. Validate reports every problem at once.
//
// Secrets (MQTT password, InfluxDB token) belong in the environment rather
// than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	policy := notification.RetryPolicy{Delays: cfg.Notification.RetryDelays}
package config
