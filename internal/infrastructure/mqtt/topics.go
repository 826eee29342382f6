package mqtt

import "fmt"

// Topic prefixes for Fieldline Core.
//
// Control group datapoint topics (sensor value, actuator setpoint/schedule/
// value) are not built here: they arrive verbatim in the configuration
// message and are owned by whichever metadata service produced them. Only
// topics that Fieldline itself originates have builders.
const (
	// TopicPrefix is the base for all Fieldline topics.
	TopicPrefix = "fieldline"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fieldline/system"
)

// Topics provides builders for the MQTT topics Fieldline Core originates.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Config returns the default topic delivering control group definitions.
//
// Example: fieldline/config
func (Topics) Config() string {
	return fmt.Sprintf("%s/config", TopicPrefix)
}

// SystemStatus returns the topic for online/offline status of this instance.
//
// Example: fieldline/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemHeartbeat returns the topic for the periodic heartbeat.
//
// Example: fieldline/system/heartbeat
func (Topics) SystemHeartbeat() string {
	return fmt.Sprintf("%s/heartbeat", TopicPrefixSystem)
}
