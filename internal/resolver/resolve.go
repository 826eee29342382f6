package resolver

// resolve computes the actuator value for a group from its current state.
//
// Pure function: no side effects, no clock.
//
//   - only a schedule present → the schedule value
//   - only a setpoint present → the preferred value
//   - neither present → nil (nothing to publish)
//   - both present → the schedule value iff the sensor reading satisfies
//     the setpoint's flexibility bound (trivially satisfied with no reading
//     or no bound), otherwise the preferred value
func resolve(st *currentState) *float64 {
	hasSchedule := st.scheduleValue != nil
	hasSetpoint := st.setpointPreferred != nil

	switch {
	case !hasSchedule && !hasSetpoint:
		return nil
	case hasSchedule && !hasSetpoint:
		return st.scheduleValue
	case !hasSchedule:
		return st.setpointPreferred
	}

	if sensorWithinFlexibility(st) {
		return st.scheduleValue
	}
	return st.setpointPreferred
}

// sensorWithinFlexibility reports whether the schedule may be trusted:
// there is no sensor reading yet, no flexibility was declared, or the
// reading lies within the declared discrete set or continuous range.
func sensorWithinFlexibility(st *currentState) bool {
	if st.sensorValue == nil {
		return true
	}
	v := *st.sensorValue

	if len(st.acceptableValues) > 0 {
		for _, acceptable := range st.acceptableValues {
			if v == acceptable {
				return true
			}
		}
		return false
	}

	if st.minValue != nil && v < *st.minValue {
		return false
	}
	if st.maxValue != nil && v > *st.maxValue {
		return false
	}
	return true
}
