// Package api implements the HTTP REST API and WebSocket server for the
// access-control core.
//
// This package provides:
//   - REST endpoints for reader pairing, state commands, and fleet queries
//   - WebSocket hub for real-time reader status broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between operator interfaces (front-desk console, wall
// tablets, member portal) and the reader fleet. Commands flow from the API
// to devices via MQTT; status reports flow back through the telemetry
// ingestor, which broadcasts changes to WebSocket clients through the hub.
//
// # Security
//
// Authentication uses JWT bearer tokens signed with the shared secret from
// the security config. Two roles exist: operators may query the fleet and
// issue state commands; managers may additionally pair readers, rename
// them, and manage the trust anchor. WebSocket connections use single-use
// tickets to keep tokens out of URLs.
//
// # Graceful Degradation
//
// The server operates without a device transport: reads and WebSocket
// connections work, only reader commands fail.
package api
