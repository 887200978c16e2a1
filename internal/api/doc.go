// Package api implements the HTTP REST API and WebSocket server for the
// installer console.
//
// This package provides:
//   - Port availability, menu, and device placement lookups per central
//   - Manual snapshot refresh for a central
//   - WebSocket hub broadcasting placement changes to open installer forms
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit)
//   - Prometheus exposition of allocator metrics
//
// # Graceful Degradation
//
// Availability and menu lookups never fail outright when the hardware state
// cannot be read: the response carries an empty port list and a notice the
// form shows to the operator.
package api
