package resolver

import (
	"sync"
	"sync/atomic"
	"time"
)

// activationKind tags what a pending activation applies when it fires.
type activationKind int

const (
	kindSetpoint activationKind = iota
	kindSchedule
)

// pendingActivation is a scheduled future application of an item, owned
// exclusively by the activationTable entry for its source topic.
//
// The cancelled flag is the authority, not the timer: time.AfterFunc may
// already have fired its callback when cancellation stops the timer, so the
// callback must re-check the flag under the controller mutex before
// applying anything.
type pendingActivation struct {
	topic     string
	kind      activationKind
	fireAt    time.Time
	timer     *time.Timer
	cancelled atomic.Bool
}

// Cancelled reports whether a superseding message revoked this activation.
func (a *pendingActivation) Cancelled() bool {
	return a.cancelled.Load()
}

// activationTable is the deferred activation registry: cancellable delayed
// actions keyed by the source topic they were derived from.
//
// Atomicity of cancel-then-install is provided jointly with the controller:
// the controller holds its state mutex across cancelAll and the following
// schedule calls, and every fire callback re-acquires that mutex and checks
// Cancelled() before applying. A stale timer therefore can never apply
// after a superseding message has been processed.
type activationTable struct {
	mu      sync.Mutex
	byTopic map[string][]*pendingActivation
}

func newActivationTable() *activationTable {
	return &activationTable{
		byTopic: make(map[string][]*pendingActivation),
	}
}

// schedule registers a delayed action for the topic, firing at fireAt.
//
// The action receives its own activation handle so it can consult
// Cancelled() under whatever serialization lock the caller applies.
func (t *activationTable) schedule(topic string, kind activationKind, fireAt time.Time, action func(act *pendingActivation)) *pendingActivation {
	act := &pendingActivation{
		topic:  topic,
		kind:   kind,
		fireAt: fireAt,
	}

	t.mu.Lock()
	act.timer = time.AfterFunc(time.Until(fireAt), func() {
		action(act)
		t.remove(act)
	})
	t.byTopic[topic] = append(t.byTopic[topic], act)
	t.mu.Unlock()

	return act
}

// cancelAll cancels and discards every activation registered under topic,
// returning how many were dropped.
func (t *activationTable) cancelAll(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	acts := t.byTopic[topic]
	delete(t.byTopic, topic)

	for _, act := range acts {
		act.cancelled.Store(true)
		if act.timer != nil {
			act.timer.Stop()
		}
	}
	return len(acts)
}

// remove drops a single fired activation from its topic entry.
func (t *activationTable) remove(act *pendingActivation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	acts := t.byTopic[act.topic]
	for i, candidate := range acts {
		if candidate == act {
			t.byTopic[act.topic] = append(acts[:i], acts[i+1:]...)
			break
		}
	}
	if len(t.byTopic[act.topic]) == 0 {
		delete(t.byTopic, act.topic)
	}
}

// count returns the number of live activations for a topic.
func (t *activationTable) count(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byTopic[topic])
}

// totalCount returns the number of live activations across all topics.
func (t *activationTable) totalCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, acts := range t.byTopic {
		total += len(acts)
	}
	return total
}
