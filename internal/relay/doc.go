// Package relay forwards the client's two logical streams to the daemon's
// sinks.
//
// A Relay subscribes once to the event engine (all devices, all
// properties) and once to the system status channel. Each update is
// queued and handed, in order, to every configured sink:
//
//   - MQTT: retained device state and controller status topics
//   - InfluxDB: numeric property values and status transitions
//   - SQLite: property history rows
//   - WebSocket hub: "device.property_updated" and "system.status"
//
// Every sink is optional. A failing sink is logged and never blocks the
// others or the poll loop. When MQTT is configured the relay also listens
// on <prefix>/command/<identifier>/<action> and invokes the action with the
// JSON array payload as arguments.
package relay
