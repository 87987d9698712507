// Package controller talks to the home-automation controller's REST API.
//
// Every request goes through Channel.Query, which classifies the outcome
// (HTTP 200 and 202 succeed, anything else fails), reports connection state
// to the status channel, and, for persistent subscriptions, retries a failed
// request forever with a fixed delay equal to the connect timeout.
//
// The HTTP exchange itself sits behind the Transport interface so the
// retry and classification logic can be tested without a controller.
//
// Wire contract:
//
//	GET /api/rooms                          -> [{id, name}]
//	GET /api/devices                        -> [{id, name, roomID, properties, actions}]
//	GET /api/refreshStates?last=N&lang=en   -> {last, events: [{type, data}]}
//	GET /api/callAction?deviceID=&name=&arg1= -> ack
package controller
