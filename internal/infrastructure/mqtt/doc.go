// Package mqtt connects the gate bridge to an MQTT broker.
//
// This package manages:
//   - Connection with auto-reconnect and a Last Will on <prefix>/system/status
//   - A retained mirror of the gate status on <prefix>/status
//   - Status reports arriving on <prefix>/status/report, fed into the
//     broadcaster exactly like POST /statusPortao
//
// MQTT is optional. When it is disabled or the broker is unreachable at
// start-up, the bridge runs on HTTP alone.
package mqtt
