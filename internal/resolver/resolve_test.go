package resolver

import "testing"

// ─── Test Helpers ───

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// ─── Resolution ───

func TestResolveNoInputs(t *testing.T) {
	st := &currentState{}
	if got := resolve(st); got != nil {
		t.Errorf("expected nil with no inputs, got %v", *got)
	}
}

func TestResolveSensorOnly(t *testing.T) {
	st := &currentState{sensorValue: f64(21.5)}
	if got := resolve(st); got != nil {
		t.Errorf("expected nil with sensor only, got %v", *got)
	}
}

func TestResolveScheduleOnly(t *testing.T) {
	st := &currentState{scheduleValue: f64(18)}
	got := resolve(st)
	if got == nil || *got != 18 {
		t.Errorf("expected schedule value 18, got %v", got)
	}
}

func TestResolveSetpointOnly(t *testing.T) {
	st := &currentState{setpointPreferred: f64(21)}
	got := resolve(st)
	if got == nil || *got != 21 {
		t.Errorf("expected preferred value 21, got %v", got)
	}
}

func TestResolveBothNoSensor(t *testing.T) {
	// No reading yet means the flexibility bound is trivially satisfied.
	st := &currentState{
		scheduleValue:     f64(18),
		setpointPreferred: f64(21),
		minValue:          f64(19),
		maxValue:          f64(23),
	}
	got := resolve(st)
	if got == nil || *got != 18 {
		t.Errorf("expected schedule value 18 without a sensor reading, got %v", got)
	}
}

func TestResolveBothNoBound(t *testing.T) {
	st := &currentState{
		sensorValue:       f64(5),
		scheduleValue:     f64(18),
		setpointPreferred: f64(21),
	}
	got := resolve(st)
	if got == nil || *got != 18 {
		t.Errorf("expected schedule value 18 without a bound, got %v", got)
	}
}

func TestResolveContinuousBound(t *testing.T) {
	tests := []struct {
		name   string
		sensor float64
		want   float64
	}{
		{"within range", 20, 18},
		{"at min", 19, 18},
		{"at max", 23, 18},
		{"below min", 18.5, 21},
		{"above max", 23.5, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &currentState{
				sensorValue:       f64(tt.sensor),
				scheduleValue:     f64(18),
				setpointPreferred: f64(21),
				minValue:          f64(19),
				maxValue:          f64(23),
			}
			got := resolve(st)
			if got == nil || *got != tt.want {
				t.Errorf("sensor %v: expected %v, got %v", tt.sensor, tt.want, got)
			}
		})
	}
}

func TestResolveMinOnlyBound(t *testing.T) {
	st := &currentState{
		sensorValue:       f64(100),
		scheduleValue:     f64(18),
		setpointPreferred: f64(21),
		minValue:          f64(19),
	}
	got := resolve(st)
	if got == nil || *got != 18 {
		t.Errorf("expected schedule to win with open upper bound, got %v", got)
	}

	st.sensorValue = f64(18)
	got = resolve(st)
	if got == nil || *got != 21 {
		t.Errorf("expected preferred below min, got %v", got)
	}
}

func TestResolveDiscreteBound(t *testing.T) {
	st := &currentState{
		sensorValue:       f64(1),
		scheduleValue:     f64(0),
		setpointPreferred: f64(1),
		acceptableValues:  []float64{0, 1},
	}
	got := resolve(st)
	if got == nil || *got != 0 {
		t.Errorf("expected schedule with acceptable sensor, got %v", got)
	}

	st.sensorValue = f64(2)
	got = resolve(st)
	if got == nil || *got != 1 {
		t.Errorf("expected preferred with unacceptable sensor, got %v", got)
	}
}
