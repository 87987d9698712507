// Package hc2 is the client facade for a Fibaro Home Center 2 controller.
//
// A Client owns one instance of each core component: the status channel,
// the controller query channel, the directory cache and the event engine.
// They are wired together from a single Options value:
//
//	client := hc2.New(hc2.Options{Host: "192.168.1.69", User: "admin", Password: "..."})
//	defer client.Close()
//
//	devices, err := client.Devices(ctx)
//	unsubscribe := client.Events(events.Criteria{}, func(e events.Event) { ... })
package hc2
