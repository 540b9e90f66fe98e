// Package logging configures structured logging for SEP2 Core on top of
// log/slog.
//
// Every entry carries service=sep2core and the build version. Subsystems
// take a child logger from Component so their lines can be filtered:
//
//	log := logging.New(cfg.Logging, version)
//	checker := notification.NewChecker(..., log.Component("notification"))
//
// Configuration:
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json, text
//	  output: stdout   # stdout, stderr
//
// Notification bodies can carry customer metering data. Log their IDs and
// subscription hrefs, never their content.
package logging
