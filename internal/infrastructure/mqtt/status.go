package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Presence values carried on Topics.ConsoleStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// maxPayloadSize caps outgoing messages at 1MB.
const maxPayloadSize = 1 << 20

// ConsoleStatus is the retained presence message for one console session.
// Since is when the session connected; it stays fixed across reconnects.
type ConsoleStatus struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Since     time.Time `json:"since"`
	Timestamp time.Time `json:"timestamp"`
}

func encodeStatus(st ConsoleStatus) []byte {
	st.Timestamp = time.Now().UTC()
	raw, err := json.Marshal(st)
	if err != nil {
		// Only strings and times; cannot happen.
		return nil
	}
	return raw
}

// publishStatus queues a retained presence update. Callers decide whether
// to wait on the token.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := encodeStatus(ConsoleStatus{
		Status:   status,
		ClientID: c.clientID,
		Reason:   reason,
		Since:    c.startedAt,
	})
	return c.client.Publish(Topics{}.ConsoleStatus(), byte(c.cfg.QoS), true, payload) //nolint:gosec // qos validated 0..2
}

// Publish sends payload to topic and waits for the broker acknowledgement.
// The console itself only publishes presence; this serves tools and tests
// that stand in for the committer.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: %d byte payload over the %d byte cap", ErrPublishFailed, len(payload), maxPayloadSize)
	case !c.IsConnected():
		return ErrNotConnected
	}
	return waitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// waitToken waits for a paho token and wraps any failure in sentinel.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: no ack within %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
