package resolver

import (
	"errors"
	"testing"
)

// ─── Window Sorting ───

func TestSortByWindowImmediateFirst(t *testing.T) {
	items := []ScheduleItem{
		{FromTimestamp: i64(100), ToTimestamp: i64(200), Value: f64(1)},
		{Value: f64(2)},
	}
	sortByWindow(items)

	if items[0].FromTimestamp != nil {
		t.Error("expected the item without a start to sort first")
	}
	if items[1].FromTimestamp == nil || *items[1].FromTimestamp != 100 {
		t.Error("expected the windowed item to sort last")
	}
}

func TestSortByWindowOpenEndedFallbackLast(t *testing.T) {
	// Among items without a start, the open-ended one applies last so it
	// is the value left in effect.
	items := []ScheduleItem{
		{Value: f64(1)},
		{ToTimestamp: i64(500), Value: f64(2)},
	}
	sortByWindow(items)

	if items[0].ToTimestamp == nil {
		t.Error("expected the closed item to sort before the open-ended one")
	}
	if items[1].ToTimestamp != nil {
		t.Error("expected the open-ended fallback to sort last")
	}
}

func TestSortByWindowByStartAscending(t *testing.T) {
	items := []SetpointItem{
		{FromTimestamp: i64(300), ToTimestamp: i64(400), PreferredValue: f64(3)},
		{FromTimestamp: i64(100), ToTimestamp: i64(200), PreferredValue: f64(1)},
		{FromTimestamp: i64(200), ToTimestamp: i64(300), PreferredValue: f64(2)},
	}
	sortByWindow(items)

	for i, want := range []int64{100, 200, 300} {
		if *items[i].FromTimestamp != want {
			t.Errorf("position %d: expected from %d, got %d", i, want, *items[i].FromTimestamp)
		}
	}
}

func TestSortByWindowStable(t *testing.T) {
	items := []ScheduleItem{
		{FromTimestamp: i64(100), ToTimestamp: i64(200), Value: f64(1)},
		{FromTimestamp: i64(100), ToTimestamp: i64(200), Value: f64(2)},
	}
	sortByWindow(items)

	if *items[0].Value != 1 || *items[1].Value != 2 {
		t.Error("expected message order preserved for tied items")
	}
}

// ─── Overlap Coverage ───

func TestCoveredByLater(t *testing.T) {
	tests := []struct {
		name     string
		rest     []ScheduleItem
		boundary int64
		want     bool
	}{
		{"empty rest", nil, 200, false},
		{"later starts before boundary", []ScheduleItem{{FromTimestamp: i64(150)}}, 200, true},
		{"later starts at boundary", []ScheduleItem{{FromTimestamp: i64(200)}}, 200, true},
		{"later starts after boundary", []ScheduleItem{{FromTimestamp: i64(250)}}, 200, false},
		{"later has no start", []ScheduleItem{{Value: f64(1)}}, 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := coveredByLater(tt.rest, tt.boundary); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// ─── Payload Decoding ───

func TestParseConfig(t *testing.T) {
	payload := []byte(`[
		{
			"sensor": {"value": "home/living/temp"},
			"actuator": {
				"setpoint": "home/living/heater/setpoint",
				"schedule": "home/living/heater/schedule",
				"value": "home/living/heater/value"
			}
		}
	]`)

	groups, err := ParseConfig(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}

	g := groups[0]
	if g.SensorTopic != "home/living/temp" {
		t.Errorf("unexpected sensor topic: %s", g.SensorTopic)
	}
	if g.SetpointTopic != "home/living/heater/setpoint" {
		t.Errorf("unexpected setpoint topic: %s", g.SetpointTopic)
	}
	if g.ScheduleTopic != "home/living/heater/schedule" {
		t.Errorf("unexpected schedule topic: %s", g.ScheduleTopic)
	}
	if g.ValueTopic != "home/living/heater/value" {
		t.Errorf("unexpected value topic: %s", g.ValueTopic)
	}
	if g.ID() != g.SensorTopic {
		t.Errorf("expected group ID to be the sensor topic, got %s", g.ID())
	}
}

func TestParseConfigMalformed(t *testing.T) {
	_, err := ParseConfig([]byte(`{not json`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestParseSensorNullValue(t *testing.T) {
	msg, err := ParseSensor([]byte(`{"value": null, "timestamp": 1700000000000}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Value != nil {
		t.Errorf("expected nil value, got %v", *msg.Value)
	}
	if msg.Timestamp == nil || *msg.Timestamp != 1700000000000 {
		t.Error("expected timestamp decoded")
	}
}

func TestParseSensorZeroDistinctFromNull(t *testing.T) {
	msg, err := ParseSensor([]byte(`{"value": 0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Value == nil || *msg.Value != 0 {
		t.Error("expected explicit zero value, not nil")
	}
}

func TestParseSetpoint(t *testing.T) {
	payload := []byte(`{
		"setpoint": [
			{"preferred_value": 21, "min_value": 19, "max_value": 23},
			{"from_timestamp": 1700000000000, "to_timestamp": 1700003600000, "preferred_value": 18}
		],
		"timestamp": 1699999999000
	}`)

	msg, err := ParseSetpoint(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Setpoint) != 2 {
		t.Fatalf("expected 2 items, got %d", len(msg.Setpoint))
	}
	if *msg.Setpoint[0].PreferredValue != 21 || *msg.Setpoint[0].MinValue != 19 {
		t.Error("first item decoded incorrectly")
	}
	if *msg.Setpoint[1].FromTimestamp != 1700000000000 {
		t.Error("second item window decoded incorrectly")
	}
}

func TestParseSetpointRejectsConflictingBounds(t *testing.T) {
	payload := []byte(`{
		"setpoint": [
			{"preferred_value": 21, "acceptable_values": [20, 21], "min_value": 19}
		]
	}`)

	_, err := ParseSetpoint(payload)
	if !errors.Is(err, ErrConflictingFlexibility) {
		t.Errorf("expected ErrConflictingFlexibility, got %v", err)
	}
}

func TestParseSchedule(t *testing.T) {
	payload := []byte(`{
		"schedule": [
			{"value": 18},
			{"from_timestamp": 1700000000000, "to_timestamp": null, "value": null}
		]
	}`)

	msg, err := ParseSchedule(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msg.Schedule) != 2 {
		t.Fatalf("expected 2 items, got %d", len(msg.Schedule))
	}
	if msg.Schedule[1].Value != nil {
		t.Error("expected explicit null value decoded as nil")
	}
}
