package mqtt

import "fmt"

// maxPayloadSize caps outbound payloads at 1MB, matching typical broker limits.
const maxPayloadSize = 1 << 20

// PublishQoS sends a message with explicit QoS and retention.
func (c *Client) PublishQoS(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Publish sends a message at the configured default QoS, unretained. Point
// data publications use this form.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.PublishQoS(topic, payload, byte(c.cfg.QoS), false)
}

// PublishRetained sends a retained message at the default QoS, for state
// topics where late subscribers need the current value.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.PublishQoS(topic, payload, byte(c.cfg.QoS), true)
}
