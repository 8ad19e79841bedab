// Package api implements the HTTP surface and WebSocket push channel of the
// gate bridge.
//
// This package provides:
//   - the command relay endpoints (POST /comando/{command})
//   - the device status report endpoint (POST /statusPortao) and read-only
//     status and history endpoints
//   - a WebSocket hub that pushes every accepted status to all clients
//   - health and metrics endpoints, and the embedded web UI
//
// # Architecture
//
// The browser UI posts commands here; each is relayed to the controller as a
// single HTTP GET. The controller reports its status back by POSTing here;
// the gate.Broadcaster stores it and hands it to the Hub, which fans it out
// to every connected browser.
//
// # Security
//
// Command endpoints accept a Bearer token when security.jwt.secret is set,
// and are open otherwise. The status report endpoint is always open because
// the controller firmware cannot carry credentials.
package api
