package mqtt

import "errors"

// Validation errors; returned before the broker is contacted.
var (
	ErrInvalidTopic = errors.New("mqtt: empty topic")
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
)

// Broker errors. Failures wrap the paho error or name the timeout.
var (
	ErrNotConnected      = errors.New("mqtt: no broker session")
	ErrConnectionFailed  = errors.New("mqtt: broker unreachable")
	ErrPublishFailed     = errors.New("mqtt: publish rejected")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe rejected")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe rejected")
)
