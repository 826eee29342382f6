// Package resolver computes actuator values for configured control groups.
//
// Each control group bundles a sensor value topic, a setpoint topic, a
// schedule topic, and the actuator value topic the result is published on.
// The controller consumes inbound messages from a pub/sub transport,
// maintains per-group state, and on every state change resolves a single
// actuator value:
//
//   - a schedule alone wins
//   - a setpoint alone contributes its preferred value
//   - when both are present the schedule wins only while the sensor reading
//     stays within the setpoint's declared flexibility bound
//
// Setpoint and schedule items carry optional time windows. Items whose
// window starts in the future are deferred via cancellable timers; a newer
// message on the same topic atomically revokes everything the previous one
// scheduled. Resolved values are published only when they change.
package resolver
