// Package gate holds the domain of the gate controller bridge.
//
// Two independent flows live here:
//
//	UI     → Relay       → device   (one-way trigger, GET http://<device>/<command>)
//	device → Broadcaster → every UI (one-way notify, current Status fan-out)
//
// The Relay never touches the Status. A command is expected to make the
// device report a new status eventually, but that causality is physical and
// is not tracked here.
//
// # Status
//
// There is exactly one current Status per process. It starts at
// StatusUnknown, is overwritten by every accepted report (no merging, no
// de-duplication, no transition validation) and is never restored from
// storage on start-up.
//
// # Thread Safety
//
// Relay and Broadcaster are safe for concurrent use. Broadcaster serialises
// writers so sinks observe reports in arrival order.
package gate
