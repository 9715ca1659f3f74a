// Package mqtt wraps paho.mqtt.golang for FieldPoint's outbound data
// stream. Poll publications go out unretained at the configured default
// QoS on the device topic hierarchy; the retained system status topic
// carries online/offline state, with a Last Will for crash detection.
//
// The initial connection retries with exponential backoff; once up, paho's
// reconnect loop takes over and tracked subscriptions are restored after
// every reconnect.
package mqtt
