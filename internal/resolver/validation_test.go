package resolver

import (
	"errors"
	"testing"
)

func validGroup(prefix string) ControlGroup {
	return ControlGroup{
		SensorTopic:   prefix + "/sensor",
		SetpointTopic: prefix + "/setpoint",
		ScheduleTopic: prefix + "/schedule",
		ValueTopic:    prefix + "/value",
	}
}

// ─── Group Validation ───

func TestValidateGroups(t *testing.T) {
	tests := []struct {
		name    string
		groups  []ControlGroup
		wantErr error
	}{
		{
			name:   "empty batch",
			groups: nil,
		},
		{
			name:   "two complete groups",
			groups: []ControlGroup{validGroup("a"), validGroup("b")},
		},
		{
			name: "missing sensor topic",
			groups: []ControlGroup{{
				SetpointTopic: "a/setpoint",
				ScheduleTopic: "a/schedule",
				ValueTopic:    "a/value",
			}},
			wantErr: ErrInvalidGroup,
		},
		{
			name: "missing value topic",
			groups: []ControlGroup{{
				SensorTopic:   "a/sensor",
				SetpointTopic: "a/setpoint",
				ScheduleTopic: "a/schedule",
			}},
			wantErr: ErrInvalidGroup,
		},
		{
			name:    "duplicate topic across groups",
			groups:  []ControlGroup{validGroup("a"), validGroup("a")},
			wantErr: ErrDuplicateTopic,
		},
		{
			name: "topic reused across roles",
			groups: []ControlGroup{{
				SensorTopic:   "a/shared",
				SetpointTopic: "a/shared",
				ScheduleTopic: "a/schedule",
				ValueTopic:    "a/value",
			}},
			wantErr: ErrDuplicateTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGroups(tt.groups)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// ─── Setpoint Item Validation ───

func TestSetpointItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    SetpointItem
		wantErr error
	}{
		{
			name: "no bounds",
			item: SetpointItem{PreferredValue: f64(21)},
		},
		{
			name: "discrete only",
			item: SetpointItem{PreferredValue: f64(1), AcceptableValues: []float64{0, 1}},
		},
		{
			name: "continuous only",
			item: SetpointItem{PreferredValue: f64(21), MinValue: f64(19), MaxValue: f64(23)},
		},
		{
			name: "min only",
			item: SetpointItem{PreferredValue: f64(21), MinValue: f64(19)},
		},
		{
			name:    "both bound forms",
			item:    SetpointItem{AcceptableValues: []float64{1}, MaxValue: f64(2)},
			wantErr: ErrConflictingFlexibility,
		},
		{
			name:    "inverted range",
			item:    SetpointItem{MinValue: f64(23), MaxValue: f64(19)},
			wantErr: ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
