package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every topic when no prefix is configured.
const DefaultTopicPrefix = "hc2"

// Topics provides builders for the relay's MQTT topics.
// Using these helpers keeps topic naming consistent between the publisher
// and the command subscriber.
//
// Device identifiers are already slash-separated (room/category/name), so
// they expand into several topic levels:
//
//	topics := mqtt.NewTopics("hc2")
//	stateTopic := topics.DeviceState("kitchen/lights/ceiling-lamp", "value")
//	// Returns: "hc2/state/kitchen/lights/ceiling-lamp/value"
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder rooted at prefix.
// Leading and trailing slashes are trimmed; an empty prefix falls back to
// DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceState returns the retained topic carrying the latest value of one
// device property.
//
// Example: hc2/state/kitchen/lights/ceiling-lamp/value
func (t Topics) DeviceState(identifier, property string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.prefix(), identifier, property)
}

// AllDeviceStates returns a wildcard matching every device state topic.
//
// Example: hc2/state/#
func (t Topics) AllDeviceStates() string {
	return t.prefix() + "/state/#"
}

// DeviceCommand returns the topic used to invoke an action on a device.
//
// Example: hc2/command/kitchen/lights/ceiling-lamp/turnOn
func (t Topics) DeviceCommand(identifier, action string) string {
	return fmt.Sprintf("%s/command/%s/%s", t.prefix(), identifier, action)
}

// AllDeviceCommands returns a wildcard matching every command topic.
//
// Example: hc2/command/#
func (t Topics) AllDeviceCommands() string {
	return t.prefix() + "/command/#"
}

// ParseCommand splits a command topic into the device identifier and the
// action name. The identifier is everything between "command/" and the last
// topic level.
//
// Returns:
//   - identifier, action: The decoded parts
//   - ok: false when the topic is not a command topic under this prefix
func (t Topics) ParseCommand(topic string) (identifier, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/command/")
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// =============================================================================
// System Topics
// =============================================================================

// ControllerStatus returns the retained topic mirroring the controller's
// system status channel (connected, error, last).
//
// Example: hc2/system/status
func (t Topics) ControllerStatus() string {
	return t.prefix() + "/system/status"
}

// BridgeStatus returns the retained topic carrying this process's own
// online/offline state, including the Last Will.
//
// Example: hc2/bridge/status
func (t Topics) BridgeStatus() string {
	return t.prefix() + "/bridge/status"
}

// All returns a wildcard matching every topic under the prefix.
//
// Example: hc2/#
func (t Topics) All() string {
	return t.prefix() + "/#"
}
