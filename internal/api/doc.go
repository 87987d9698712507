// Package api implements the HTTP REST API and WebSocket server for hc2sync.
//
// This package provides:
//   - Read endpoints over the live room/device directory
//   - Property history from the SQLite store
//   - Action invocation on controller devices
//   - WebSocket hub broadcasting property updates and controller status
//   - Middleware stack (request ID, logging, recovery, CORS, optional JWT)
//
// # Architecture
//
// The server sits next to the relay. Reads are answered from the client's
// directory snapshot; "?refresh=true" forces a controller round trip.
// Property updates reach WebSocket clients through the shared Hub, which the
// relay feeds.
//
// # Security
//
// When api.jwt_secret is set every route except /health requires an HS256
// bearer token. Browsers that cannot set headers on WebSocket upgrades may
// pass the token as the access_token query parameter instead.
package api
