package resolver

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Wire conventions: all payloads are JSON, timestamps are integer
// milliseconds since epoch UTC, and an absent value is an explicit null,
// distinct from zero. Optional fields are therefore pointers.

// Message is one inbound topic/payload pair awaiting classification by the
// controller loop.
type Message struct {
	Topic   string
	Payload []byte
}

// ControlGroup is the bundle of topics governing one actuator, identified
// by its sensor value topic.
type ControlGroup struct {
	// SensorTopic delivers live sensor readings for the group.
	SensorTopic string `json:"sensor_topic"`

	// SetpointTopic delivers user setpoint messages for the actuator.
	SetpointTopic string `json:"setpoint_topic"`

	// ScheduleTopic delivers optimizer schedule messages for the actuator.
	ScheduleTopic string `json:"schedule_topic"`

	// ValueTopic is where the resolved actuator value is published.
	ValueTopic string `json:"value_topic"`
}

// ID returns the group identifier (its sensor value topic).
func (g ControlGroup) ID() string {
	return g.SensorTopic
}

// configEntry is the wire shape of one control group in a config message.
type configEntry struct {
	Sensor struct {
		Value string `json:"value"`
	} `json:"sensor"`
	Actuator struct {
		Setpoint string `json:"setpoint"`
		Schedule string `json:"schedule"`
		Value    string `json:"value"`
	} `json:"actuator"`
}

// SensorMessage is the wire shape of a sensor value update.
type SensorMessage struct {
	Value     *float64 `json:"value"`
	Timestamp *int64   `json:"timestamp"`
}

// ScheduleItem is one entry of an optimizer schedule: a preferred actuator
// value over a time window. A nil FromTimestamp means "apply as soon as
// possible"; a nil ToTimestamp means "apply indefinitely", making the item the
// batch's fallback default.
type ScheduleItem struct {
	FromTimestamp *int64   `json:"from_timestamp"`
	ToTimestamp   *int64   `json:"to_timestamp"`
	Value         *float64 `json:"value"`
}

// ScheduleMessage is the wire shape of a schedule update.
type ScheduleMessage struct {
	Schedule  []ScheduleItem `json:"schedule"`
	Timestamp *int64         `json:"timestamp"`
}

// SetpointItem is one entry of a user setpoint: a preferred actuator value
// plus an optional flexibility bound over a time window. The bound is either
// a discrete set of acceptable sensor values or a continuous [min,max]
// range; the two forms are mutually exclusive per item.
type SetpointItem struct {
	FromTimestamp    *int64    `json:"from_timestamp"`
	ToTimestamp      *int64    `json:"to_timestamp"`
	PreferredValue   *float64  `json:"preferred_value"`
	AcceptableValues []float64 `json:"acceptable_values,omitempty"`
	MinValue         *float64  `json:"min_value,omitempty"`
	MaxValue         *float64  `json:"max_value,omitempty"`
}

// SetpointMessage is the wire shape of a setpoint update.
type SetpointMessage struct {
	Setpoint  []SetpointItem `json:"setpoint"`
	Timestamp *int64         `json:"timestamp"`
}

// PublishedValue is the wire shape of a resolved actuator value.
type PublishedValue struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// currentState holds the latest known inputs for one control group.
// Mutated only under the controller mutex; read by the pure resolve
// function.
type currentState struct {
	group ControlGroup

	sensorValue   *float64
	scheduleValue *float64

	setpointPreferred *float64
	acceptableValues  []float64
	minValue          *float64
	maxValue          *float64

	// lastPublished backs the publish-on-change guarantee.
	lastPublished *float64
}

// timedItem is the temporal window shared by schedule and setpoint items.
type timedItem interface {
	window() (from, to *int64)
}

func (i ScheduleItem) window() (*int64, *int64) { return i.FromTimestamp, i.ToTimestamp }
func (i SetpointItem) window() (*int64, *int64) { return i.FromTimestamp, i.ToTimestamp }

// sortByWindow orders a batch of items by the tie-break key
// (has-a-start-time, is-open-ended, start-time) ascending: items without a
// start apply first, and among those the open-ended fallback applies last,
// so it is the one left in effect. The sort is stable, preserving message
// order for fully tied items.
func sortByWindow[T timedItem](items []T) {
	sort.SliceStable(items, func(a, b int) bool {
		aFrom, aTo := items[a].window()
		bFrom, bTo := items[b].window()

		aHasFrom := aFrom != nil
		bHasFrom := bFrom != nil
		if aHasFrom != bHasFrom {
			return !aHasFrom
		}

		aOpen := aTo == nil
		bOpen := bTo == nil
		if aOpen != bOpen {
			return !aOpen
		}

		var aStart, bStart int64
		if aHasFrom {
			aStart = *aFrom
		}
		if bHasFrom {
			bStart = *bFrom
		}
		return aStart < bStart
	})
}

// coveredByLater reports whether any later-sorted item in the same batch is
// already active at the boundary: its start is absent or at/before it. A
// covered boundary needs no fallback deactivation; the overlap hands off
// to the later item.
func coveredByLater[T timedItem](rest []T, boundary int64) bool {
	for _, item := range rest {
		from, _ := item.window()
		if from == nil || *from <= boundary {
			return true
		}
	}
	return false
}

// timeFromMillis converts a wire timestamp to a time.Time.
func timeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// millis converts a time.Time to a wire timestamp.
func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// ParseConfig decodes a configuration payload into control groups.
// Structural validation (topic presence, duplicates) happens separately in
// ValidateGroups so a caller can distinguish decode from content errors.
func ParseConfig(payload []byte) ([]ControlGroup, error) {
	var entries []configEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("%w: config: %w", ErrMalformedPayload, err)
	}

	groups := make([]ControlGroup, 0, len(entries))
	for _, e := range entries {
		groups = append(groups, ControlGroup{
			SensorTopic:   e.Sensor.Value,
			SetpointTopic: e.Actuator.Setpoint,
			ScheduleTopic: e.Actuator.Schedule,
			ValueTopic:    e.Actuator.Value,
		})
	}
	return groups, nil
}

// ParseSensor decodes a sensor value payload.
func ParseSensor(payload []byte) (SensorMessage, error) {
	var msg SensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SensorMessage{}, fmt.Errorf("%w: sensor value: %w", ErrMalformedPayload, err)
	}
	return msg, nil
}

// ParseSetpoint decodes and validates a setpoint payload.
func ParseSetpoint(payload []byte) (SetpointMessage, error) {
	var msg SetpointMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return SetpointMessage{}, fmt.Errorf("%w: setpoint: %w", ErrMalformedPayload, err)
	}
	for i := range msg.Setpoint {
		if err := msg.Setpoint[i].Validate(); err != nil {
			return SetpointMessage{}, fmt.Errorf("setpoint item %d: %w", i, err)
		}
	}
	return msg, nil
}

// ParseSchedule decodes a schedule payload.
func ParseSchedule(payload []byte) (ScheduleMessage, error) {
	var msg ScheduleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ScheduleMessage{}, fmt.Errorf("%w: schedule: %w", ErrMalformedPayload, err)
	}
	return msg, nil
}
