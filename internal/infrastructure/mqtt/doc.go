// Package mqtt provides MQTT client connectivity for the hc2sync relay.
//
// This package manages:
//   - Connection to a Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic Layout
//
// Every topic lives under a configurable prefix (default "hc2"):
//
//	hc2/state/<room>/<category>/<name>/<property>   retained property values
//	hc2/command/<identifier>/<action>               action invocations (JSON array of args)
//	hc2/system/status                               controller connection state
//	hc2/bridge/status                               relay online/offline (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        identifier, action, _ := topics.ParseCommand(topic)
//	        log.Printf("call %s.%s(%s)", identifier, action, payload)
//	        return nil
//	    })
//
//	client.PublishRetained(topics.DeviceState("kitchen/light", "value"), payload)
package mqtt
