package resolver

import "fmt"

// ValidateGroups checks a configuration batch for completeness.
//
// Every group must carry all four topics and no topic may appear twice
// across the batch. Validation is wholesale: the first problem rejects the
// entire configuration, so a caller never applies a partial one.
func ValidateGroups(groups []ControlGroup) error {
	seen := make(map[string]string, len(groups)*4)

	for i, g := range groups {
		fields := []struct {
			name  string
			topic string
		}{
			{"sensor.value", g.SensorTopic},
			{"actuator.setpoint", g.SetpointTopic},
			{"actuator.schedule", g.ScheduleTopic},
			{"actuator.value", g.ValueTopic},
		}

		for _, f := range fields {
			if f.topic == "" {
				return fmt.Errorf("%w: entry %d is missing %s", ErrInvalidGroup, i, f.name)
			}
			if prev, dup := seen[f.topic]; dup {
				return fmt.Errorf("%w: %q used as both %s and %s", ErrDuplicateTopic, f.topic, prev, f.name)
			}
			seen[f.topic] = f.name
		}
	}

	return nil
}

// Validate checks a setpoint item's flexibility declaration.
//
// Discrete (acceptable_values) and continuous (min_value/max_value) bounds
// are mutually exclusive, and a continuous bound must not be inverted.
func (i SetpointItem) Validate() error {
	discrete := len(i.AcceptableValues) > 0
	continuous := i.MinValue != nil || i.MaxValue != nil

	if discrete && continuous {
		return ErrConflictingFlexibility
	}
	if i.MinValue != nil && i.MaxValue != nil && *i.MinValue > *i.MaxValue {
		return fmt.Errorf("%w: min %v, max %v", ErrInvalidRange, *i.MinValue, *i.MaxValue)
	}
	return nil
}
