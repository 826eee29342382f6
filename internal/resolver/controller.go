package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Bus is the pub/sub collaborator contract the controller consumes.
//
// Subscribe and Unsubscribe are idempotent topic (de)registrations; the
// transport delivers inbound messages by calling Enqueue on the controller.
// Publish is fire-and-forget from the controller's point of view.
type Bus interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) error
}

// Snapshotter persists the latest applied control group configuration so a
// restarted instance can resubscribe before the broker re-delivers config.
type Snapshotter interface {
	Save(groups []ControlGroup) error
}

// Logger defines the logging interface for the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// topicRole classifies an inbound datapoint topic within its control group.
type topicRole int

const (
	roleSensor topicRole = iota
	roleSetpoint
	roleSchedule
)

// binding maps an inbound topic to its owning group and role.
type binding struct {
	groupID string
	role    topicRole
}

// Controller owns per-control-group state and computes the synthesized
// actuator value from sensor feedback, setpoints, and schedules.
//
// Inbound messages are consumed by a single loop (Run), so per-message work
// is naturally serialized; the mutex additionally covers deferred
// activation callbacks, which fire on timer goroutines. Any state mutation
// triggers a recomputation and a publish only when the resolved value
// changed.
type Controller struct {
	bus         Bus
	logger      Logger
	configTopic string
	snapshot    Snapshotter

	inbox chan Message

	// now is the clock; replaced in tests.
	now func() time.Time

	mu       sync.Mutex
	states   map[string]*currentState
	bindings map[string]binding
	pending  *activationTable
}

// NewController creates a controller.
//
// Parameters:
//   - configTopic: topic delivering control group definitions
//   - inboxSize: buffer size of the inbound message channel
//   - bus: pub/sub collaborator (must not be nil)
//   - logger: logger instance (nil for none)
func NewController(configTopic string, inboxSize int, bus Bus, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		bus:         bus,
		logger:      logger,
		configTopic: configTopic,
		inbox:       make(chan Message, inboxSize),
		now:         time.Now,
		states:      make(map[string]*currentState),
		bindings:    make(map[string]binding),
		pending:     newActivationTable(),
	}
}

// SetSnapshotter attaches an optional configuration snapshot store.
// Must be called before Run.
func (c *Controller) SetSnapshotter(s Snapshotter) {
	c.snapshot = s
}

// Enqueue hands an inbound message to the controller loop.
//
// It blocks when the inbox is full, which backpressures the transport's
// callback goroutines rather than dropping messages.
func (c *Controller) Enqueue(topic string, payload []byte) {
	c.inbox <- Message{Topic: topic, Payload: payload}
}

// Run is the controller's message loop, intended as a dispatch target.
//
// It subscribes to the config topic and consumes the inbox until the
// context is cancelled. A message-level error ends the loop and propagates
// to the dispatcher running it; the supervisor decides whether to restart.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.bus.Subscribe(c.configTopic); err != nil {
		return fmt.Errorf("subscribing to config topic: %w", err)
	}
	c.logger.Info("controller loop started", "config_topic", c.configTopic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.inbox:
			if err := c.HandleMessage(msg.Topic, msg.Payload); err != nil {
				return err
			}
		}
	}
}

// HandleMessage classifies an inbound message by topic and dispatches it.
//
// Configuration errors are logged and absorbed; the previous configuration
// stays in effect. Sensor/setpoint/schedule errors are logged with the
// topic and raw payload, then returned so they surface through the
// dispatcher; the controller does not attempt partial recovery within a
// single message.
func (c *Controller) HandleMessage(topic string, payload []byte) error {
	if topic == c.configTopic {
		groups, err := ParseConfig(payload)
		if err == nil {
			err = c.ApplyConfig(groups)
		}
		if err != nil {
			c.logger.Warn("configuration rejected, keeping previous",
				"topic", topic,
				"payload", string(payload),
				"error", err,
			)
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.bindings[topic]
	if !ok {
		// Can legitimately happen for messages in flight across a
		// config change that dropped the topic.
		c.logger.Debug("message on unbound topic ignored", "topic", topic)
		return nil
	}
	st := c.states[b.groupID]

	var err error
	switch b.role {
	case roleSensor:
		err = c.handleSensor(st, payload)
	case roleSetpoint:
		err = c.handleSetpoint(st, topic, payload)
	case roleSchedule:
		err = c.handleSchedule(st, topic, payload)
	}

	if err != nil {
		c.logger.Error("message handling failed",
			"topic", topic,
			"payload", string(payload),
			"error", err,
		)
		return fmt.Errorf("handling message on %q: %w", topic, err)
	}
	return nil
}

// ApplyConfig replaces the known control group set.
//
// The batch is validated wholesale first; on any error the previous
// configuration remains fully in effect. For topics that disappeared, all
// pending activations are cancelled, subscriptions are dropped, and
// orphaned group state is discarded. Topics that appeared are subscribed.
// A group whose sensor topic persists keeps its current state with an
// updated topic bundle, so a config resend never forces a republish.
func (c *Controller) ApplyConfig(groups []ControlGroup) error {
	if err := ValidateGroups(groups); err != nil {
		return err
	}

	c.mu.Lock()

	newBindings := make(map[string]binding, len(groups)*3)
	for _, g := range groups {
		newBindings[g.SensorTopic] = binding{groupID: g.ID(), role: roleSensor}
		newBindings[g.SetpointTopic] = binding{groupID: g.ID(), role: roleSetpoint}
		newBindings[g.ScheduleTopic] = binding{groupID: g.ID(), role: roleSchedule}
	}

	var added, removed []string
	for topic := range c.bindings {
		if _, ok := newBindings[topic]; !ok {
			removed = append(removed, topic)
		}
	}
	for topic := range newBindings {
		if _, ok := c.bindings[topic]; !ok {
			added = append(added, topic)
		}
	}

	// Stale timers keyed by removed topics must never apply again.
	for _, topic := range removed {
		c.pending.cancelAll(topic)
	}

	newStates := make(map[string]*currentState, len(groups))
	for _, g := range groups {
		if st, ok := c.states[g.ID()]; ok {
			st.group = g
			newStates[g.ID()] = st
		} else {
			newStates[g.ID()] = &currentState{group: g}
		}
	}
	c.states = newStates
	c.bindings = newBindings

	c.mu.Unlock()

	// Transport calls can block on the network; keep them outside the
	// state mutex. The binding table is already updated, so messages
	// arriving mid-diff classify correctly.
	for _, topic := range removed {
		if err := c.bus.Unsubscribe(topic); err != nil {
			c.logger.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
	for _, topic := range added {
		if err := c.bus.Subscribe(topic); err != nil {
			c.logger.Warn("subscribe failed, messages will be missed until reconnect",
				"topic", topic,
				"error", err,
			)
		}
	}

	if c.snapshot != nil {
		if err := c.snapshot.Save(groups); err != nil {
			c.logger.Warn("config snapshot save failed", "error", err)
		}
	}

	c.logger.Info("configuration applied",
		"groups", len(groups),
		"topics_added", len(added),
		"topics_removed", len(removed),
	)
	return nil
}

// handleSensor replaces the group's sensor value unconditionally (sensor
// readings carry no temporal window) and re-resolves.
func (c *Controller) handleSensor(st *currentState, payload []byte) error {
	msg, err := ParseSensor(payload)
	if err != nil {
		return err
	}

	st.sensorValue = msg.Value
	c.resolveAndPublish(st)
	return nil
}

// handleSetpoint processes a setpoint batch for its source topic.
func (c *Controller) handleSetpoint(st *currentState, topic string, payload []byte) error {
	msg, err := ParseSetpoint(payload)
	if err != nil {
		return err
	}

	c.pending.cancelAll(topic)
	items := msg.Setpoint
	sortByWindow(items)

	for i, item := range items {
		c.applyOrDefer(st, topic, kindSetpoint, item.FromTimestamp, func() {
			c.applySetpointItem(st, item)
		})
		if item.ToTimestamp != nil && !coveredByLater(items[i+1:], *item.ToTimestamp) {
			c.scheduleDeactivation(st, topic, kindSetpoint, *item.ToTimestamp)
		}
	}
	return nil
}

// handleSchedule processes a schedule batch for its source topic.
func (c *Controller) handleSchedule(st *currentState, topic string, payload []byte) error {
	msg, err := ParseSchedule(payload)
	if err != nil {
		return err
	}

	c.pending.cancelAll(topic)
	items := msg.Schedule
	sortByWindow(items)

	for i, item := range items {
		c.applyOrDefer(st, topic, kindSchedule, item.FromTimestamp, func() {
			c.applyScheduleItem(st, item)
		})
		if item.ToTimestamp != nil && !coveredByLater(items[i+1:], *item.ToTimestamp) {
			c.scheduleDeactivation(st, topic, kindSchedule, *item.ToTimestamp)
		}
	}
	return nil
}

// applyOrDefer runs apply immediately when the item has no start time or
// its start has passed, and otherwise registers a pending activation for
// it. Exactly the same apply closure serves both paths.
func (c *Controller) applyOrDefer(st *currentState, topic string, kind activationKind, from *int64, apply func()) {
	if from == nil || !timeFromMillis(*from).After(c.now()) {
		apply()
		return
	}
	c.deferApply(topic, kind, timeFromMillis(*from), apply)
}

// scheduleDeactivation arranges the fall-back to the kind's safe default at
// the end of an item's window: a setpoint reverts to no preference and no
// flexibility, a schedule to no value. A boundary already in the past
// deactivates immediately.
func (c *Controller) scheduleDeactivation(st *currentState, topic string, kind activationKind, boundary int64) {
	var apply func()
	switch kind {
	case kindSetpoint:
		apply = func() { c.applySetpointItem(st, SetpointItem{}) }
	case kindSchedule:
		apply = func() { c.applyScheduleItem(st, ScheduleItem{}) }
	}

	if !timeFromMillis(boundary).After(c.now()) {
		apply()
		return
	}
	c.deferApply(topic, kind, timeFromMillis(boundary), apply)
}

// deferApply registers a pending activation whose fire callback re-enters
// the controller mutex and skips itself if a superseding message cancelled
// it in the meantime. This check-under-lock is what makes cancel-then-
// install atomic: a timer that already left the runtime's timer heap still
// cannot apply after cancelAll ran.
func (c *Controller) deferApply(topic string, kind activationKind, fireAt time.Time, apply func()) {
	c.pending.schedule(topic, kind, fireAt, func(act *pendingActivation) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if act.Cancelled() {
			return
		}
		apply()
	})
}

// applySetpointItem installs a setpoint item into group state and
// re-resolves. The zero item is the setpoint safe default.
func (c *Controller) applySetpointItem(st *currentState, item SetpointItem) {
	st.setpointPreferred = item.PreferredValue
	st.acceptableValues = item.AcceptableValues
	st.minValue = item.MinValue
	st.maxValue = item.MaxValue
	c.resolveAndPublish(st)
}

// applyScheduleItem installs a schedule item into group state and
// re-resolves. The zero item is the schedule safe default.
func (c *Controller) applyScheduleItem(st *currentState, item ScheduleItem) {
	st.scheduleValue = item.Value
	c.resolveAndPublish(st)
}

// resolveAndPublish recomputes the actuator value and publishes it only
// when it differs from the last published value.
func (c *Controller) resolveAndPublish(st *currentState) {
	value := resolve(st)
	if value == nil {
		return
	}
	if st.lastPublished != nil && *st.lastPublished == *value {
		return
	}

	payload, err := json.Marshal(PublishedValue{
		Value:     *value,
		Timestamp: millis(c.now()),
	})
	if err != nil {
		c.logger.Error("encoding actuator value failed", "topic", st.group.ValueTopic, "error", err)
		return
	}

	if err := c.bus.Publish(st.group.ValueTopic, payload); err != nil {
		// lastPublished stays unchanged so the next recomputation
		// retries the send.
		c.logger.Error("actuator value publish failed",
			"topic", st.group.ValueTopic,
			"error", err,
		)
		return
	}

	published := *value
	st.lastPublished = &published
	c.logger.Debug("actuator value published",
		"topic", st.group.ValueTopic,
		"value", published,
	)
}

// GroupCount returns the number of configured control groups.
func (c *Controller) GroupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

// PendingActivations returns the number of live deferred activations.
func (c *Controller) PendingActivations() int {
	return c.pending.totalCount()
}
