// Package status tracks external event lifecycle transitions.
//
// The tracker is the single source of truth for "has this event
// already been reported terminal": it persists every observed status
// in the durable store and publishes a cancellation event at most once
// per event, no matter how many sources observe the terminal status.
package status
