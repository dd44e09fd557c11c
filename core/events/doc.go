// Package events defines the platform events emitted on the event bus.
//
// Available event types:
//   - DispatchEvent: outcome of one gateway call
//   - FlowEvent: end state of one orchestration flow run
package events
