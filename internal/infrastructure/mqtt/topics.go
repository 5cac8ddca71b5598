package mqtt

import "strings"

// Topics builds the gateway's MQTT topic names under a configured prefix.
//
//	topics := mqtt.Topics{Prefix: "alexagw"}
//	topics.State("hue.0.kitchen.on") // "alexagw/state/hue.0.kitchen.on"
//
// Point IDs are used verbatim as the final topic level(s); a "/" inside a
// point ID simply adds levels.
type Topics struct {
	Prefix string
}

// State is the retained topic a point's current value is published on by
// whatever bridges the physical device.
func (t Topics) State(pointID string) string {
	return t.Prefix + "/state/" + pointID
}

// Set is the topic the gateway publishes write requests for a point on.
func (t Topics) Set(pointID string) string {
	return t.Prefix + "/set/" + pointID
}

// AllStates matches every state topic.
func (t Topics) AllStates() string {
	return t.Prefix + "/state/#"
}

// PointFromState extracts the point ID from a state topic.
// Returns false if the topic is not a state topic under this prefix.
func (t Topics) PointFromState(topic string) (string, bool) {
	pointID, ok := strings.CutPrefix(topic, t.Prefix+"/state/")
	if !ok || pointID == "" {
		return "", false
	}
	return pointID, true
}

// Status is the retained online/offline topic (also the LWT topic).
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// Connection is the retained topic carrying the provider link connectivity flag.
func (t Topics) Connection() string {
	return t.Prefix + "/info/connection"
}
