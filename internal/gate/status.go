package gate

import "strings"

// Status is the gate state as reported by the device.
//
// The set is open: any non-empty string the device sends is accepted and
// relayed verbatim. The constants below are the values the controller
// firmware is known to send, listed for the UI and tests only.
type Status string

// StatusUnknown is the value every process starts with, before the device
// has reported anything.
const StatusUnknown Status = "desconhecido"

// Values observed from the controller firmware.
const (
	StatusOpen    Status = "aberto"
	StatusClosed  Status = "fechado"
	StatusOpening Status = "abrindo"
	StatusClosing Status = "fechando"
	StatusStopped Status = "parado"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// IsEmpty reports whether the status carries no usable value.
// Whitespace-only values count as empty.
func (s Status) IsEmpty() bool {
	return strings.TrimSpace(string(s)) == ""
}

// Source identifies the transport a status report arrived on.
type Source string

// Report sources.
const (
	SourceHTTP Source = "http"
	SourceMQTT Source = "mqtt"
)
