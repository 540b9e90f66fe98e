// Package api implements the administrative HTTP API for SEP2 Core.
//
// This package provides:
//   - a health endpoint covering the database and notification state
//   - change triggers that schedule notification checks after a write
//   - read-only subscription and delivery log listing for operators
//   - middleware for request IDs, logging, panic recovery and body limits
//
// # Endpoints
//
//	GET  /api/v1/health
//	POST /api/v1/notifications/{resource}/changes   {"changed_time": "...", "deleted": false}
//	GET  /api/v1/subscriptions?aggregator_id=1
//	GET  /api/v1/subscriptions/{id}
//	GET  /api/v1/deliveries?notification_id=&outcome=&limit=&offset=
//
// {resource} is one of site, reading, dynamic_operating_envelope or
// tariff_generated_rate.
//
// # Notifications Disabled
//
// When the service runs without a task broker the change trigger still
// answers 202, reporting "disabled" instead of "scheduled".
package api
