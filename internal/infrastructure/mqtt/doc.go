// Package mqtt wraps the paho MQTT client for Fieldline Core.
//
// It provides connection lifecycle management with Last Will and Testament,
// automatic reconnection with restored subscriptions, panic-safe message
// handlers, validated publish/subscribe operations with timeouts, and
// builders for the topics Fieldline originates.
//
// The controller consumes this package through a narrow Bus interface; see
// the adapter in cmd/fieldline.
package mqtt
