// Package events runs the long-poll loop against /api/refreshStates and
// fans device property updates out to subscribers.
//
// The loop is demand-started: it begins with the first subscriber and
// stops when the last one leaves. All subscribers share the one loop and
// each receives the events matching its own Criteria.
//
// Each iteration:
//
//  1. queries refreshStates since the cursor, retrying until it succeeds
//  2. moves the cursor to the response's "last", even with no events
//  3. keeps only DevicePropertyUpdatedEvent entries
//  4. refreshes the directory once if any device id is unfamiliar
//  5. schedules the next iteration after the polling interval
//  6. stamps each event with its device's identifiers and emits it
//
// Disconnect resets the cursor to 0 and cancels the next scheduled
// iteration. An iteration already in flight is allowed to finish.
package events
