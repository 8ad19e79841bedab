package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "portao"

// Topics builds topic names under a configurable prefix.
//
//	<prefix>/status          retained gate status mirror
//	<prefix>/status/report   status reports from MQTT-speaking controllers
//	<prefix>/system/status   bridge online/offline (LWT)
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder for prefix. Surrounding slashes are
// ignored.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the normalised prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// Status returns the retained status mirror topic.
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// StatusReport returns the topic controllers publish status reports to.
func (t Topics) StatusReport() string {
	return t.prefix + "/status/report"
}

// SystemStatus returns the bridge online/offline topic.
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}
