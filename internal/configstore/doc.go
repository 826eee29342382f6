// Package configstore persists control group configuration snapshots so a
// restarted instance can resubscribe to its datapoint topics without
// waiting for the broker to re-deliver the config message.
package configstore
