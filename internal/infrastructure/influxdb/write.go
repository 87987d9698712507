package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the relay.
const (
	// PropertyMeasurement holds numeric device property values, tagged by
	// device_id, property and (when known) identifier.
	PropertyMeasurement = "device_properties"

	// StatusMeasurement holds controller status transitions, tagged by kind.
	StatusMeasurement = "controller_status"
)

// WritePropertyMetric queues one numeric property value. Tagging by the
// controller id keeps a device on the same series across renames.
//
// Example:
//
//	client.WritePropertyMetric(42, "kitchen/light", "value", 55, time.Now())
func (c *Client) WritePropertyMetric(deviceID int, identifier, property string, value float64, timestamp time.Time) {
	if w := c.writer(); w != nil {
		w.WritePoint(newPropertyPoint(deviceID, identifier, property, value, timestamp))
	}
}

// WriteStatusMetric queues a controller status transition. kind is one of
// "connected", "error" or "last"; last carries the restart marker.
func (c *Client) WriteStatusMetric(kind string, last int64, timestamp time.Time) {
	if w := c.writer(); w != nil {
		w.WritePoint(newStatusPoint(kind, last, timestamp))
	}
}

func newPropertyPoint(deviceID int, identifier, property string, value float64, timestamp time.Time) *write.Point {
	point := write.NewPointWithMeasurement(PropertyMeasurement).
		AddTag("device_id", strconv.Itoa(deviceID)).
		AddTag("property", property).
		AddField("value", value).
		SetTime(timestamp)
	if identifier != "" {
		point.AddTag("identifier", identifier)
	}
	return point.SortTags()
}

func newStatusPoint(kind string, last int64, timestamp time.Time) *write.Point {
	// An error status is the only disconnected state.
	connected := 1
	if kind == "error" {
		connected = 0
	}

	return write.NewPointWithMeasurement(StatusMeasurement).
		AddTag("kind", kind).
		AddField("connected", connected).
		AddField("last", last).
		SetTime(timestamp)
}
