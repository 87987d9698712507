// Package status carries connection-state notifications about the
// controller.
//
// The controller query channel is the only producer. Consecutive equal
// events are collapsed into one, and subscribers only see events published
// after they join.
package status
