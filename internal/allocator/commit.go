package allocator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
)

// commitInvalidateTimeout bounds cache invalidation for one commit event.
const commitInvalidateTimeout = 5 * time.Second

// ErrInvalidCommitEvent is returned when a commit announcement cannot be used.
var ErrInvalidCommitEvent = errors.New("allocator: invalid commit event")

// Reindex describes a slot move performed by the committer.
type Reindex struct {
	From int `json:"from"`
	To   int `json:"to"`
	Port int `json:"port"`
}

// Validate checks that both slot positions are in range.
func (r *Reindex) Validate() error {
	var errs []error
	if r.From < 0 || r.From >= hardware.SequenceLimit {
		errs = append(errs, fmt.Errorf("%w: from %d", hardware.ErrSlotOutOfRange, r.From))
	}
	if r.To < 0 || r.To >= hardware.SequenceLimit {
		errs = append(errs, fmt.Errorf("%w: to %d", hardware.ErrSlotOutOfRange, r.To))
	}
	if r.Port < 0 {
		errs = append(errs, fmt.Errorf("%w: negative index %d", hardware.ErrInvalidPort, r.Port))
	}
	return errors.Join(errs...)
}

// CommitEvent is announced by the Allocation Committer after every write.
//
//	{"central_id": "central-1", "direction": "input", "device_id": "kp-1",
//	 "reindex": {"from": 2, "to": 0, "port": 1}, "committed_at": "..."}
//
// An empty direction means both pools may have changed.
type CommitEvent struct {
	CentralID   string             `json:"central_id"`
	Direction   hardware.Direction `json:"direction,omitempty"`
	DeviceID    string             `json:"device_id,omitempty"`
	Reindex     *Reindex           `json:"reindex,omitempty"`
	CommittedAt time.Time          `json:"committed_at"`
}

// Validate checks the event before it is acted on.
func (e *CommitEvent) Validate() error {
	if e.CentralID == "" {
		return fmt.Errorf("%w: missing central id", ErrInvalidCommitEvent)
	}
	if e.Direction != "" && !e.Direction.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidCommitEvent, hardware.ErrInvalidDirection, e.Direction)
	}
	if e.Reindex != nil {
		if err := e.Reindex.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommitEvent, err)
		}
	}
	return nil
}

// ParseCommitEvent decodes a commit announcement received on topic.
// When the payload omits the central id it is taken from the topic,
// graylogic/core/central/{id}/placement/committed.
func ParseCommitEvent(topic string, payload []byte) (CommitEvent, error) {
	var ev CommitEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return CommitEvent{}, fmt.Errorf("%w: %w", ErrInvalidCommitEvent, err)
	}
	if ev.CentralID == "" {
		ev.CentralID = centralFromTopic(topic)
	}
	if err := ev.Validate(); err != nil {
		return CommitEvent{}, err
	}
	return ev, nil
}

func centralFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "central" {
			return parts[i+1]
		}
	}
	return ""
}

// Subscriber is the message bus used to receive commit announcements.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
}

// CommitListenerOptions configures a CommitListener.
type CommitListenerOptions struct {
	Service    *Service
	Subscriber Subscriber
	Topic      string
	QoS        byte
	Logger     Logger

	// OnCommit runs after the affected snapshots were invalidated.
	OnCommit func(ev CommitEvent)
}

// CommitListener invalidates cached snapshots when the committer announces
// a write.
type CommitListener struct {
	svc      *Service
	sub      Subscriber
	topic    string
	qos      byte
	logger   Logger
	onCommit func(CommitEvent)

	mu      sync.Mutex
	running bool
}

// NewCommitListener creates a listener. Service, Subscriber and Topic are required.
func NewCommitListener(opts CommitListenerOptions) (*CommitListener, error) {
	if opts.Service == nil {
		return nil, errors.New("allocator: commit listener needs a service")
	}
	if opts.Subscriber == nil {
		return nil, errors.New("allocator: commit listener needs a subscriber")
	}
	if opts.Topic == "" {
		return nil, errors.New("allocator: commit listener needs a topic")
	}

	l := &CommitListener{
		svc:      opts.Service,
		sub:      opts.Subscriber,
		topic:    opts.Topic,
		qos:      opts.QoS,
		logger:   opts.Logger,
		onCommit: opts.OnCommit,
	}
	if l.logger == nil {
		l.logger = noopLogger{}
	}
	return l, nil
}

// Start subscribes to the commit topic. Calling Start twice is a no-op.
func (l *CommitListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	if err := l.sub.Subscribe(l.topic, l.qos, l.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", l.topic, err)
	}
	l.running = true
	l.logger.Info("commit listener started", "topic", l.topic)
	return nil
}

// Stop unsubscribes. It is safe to call on a stopped listener.
func (l *CommitListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	l.running = false
	if err := l.sub.Unsubscribe(l.topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", l.topic, err)
	}
	l.logger.Info("commit listener stopped", "topic", l.topic)
	return nil
}

// HandleMessage processes one commit announcement.
func (l *CommitListener) HandleMessage(topic string, payload []byte) error {
	ev, err := ParseCommitEvent(topic, payload)
	if err != nil {
		l.logger.Warn("ignoring commit event", "topic", topic, "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commitInvalidateTimeout)
	defer cancel()

	if err := l.svc.Invalidate(ctx, ev.CentralID, ev.Direction); err != nil {
		l.logger.Error("invalidating after commit failed",
			"central_id", ev.CentralID,
			"direction", string(ev.Direction),
			"error", err,
		)
		return err
	}

	l.logger.Debug("placement committed",
		"central_id", ev.CentralID,
		"direction", string(ev.Direction),
		"device_id", ev.DeviceID,
	)
	if l.onCommit != nil {
		l.onCommit(ev)
	}
	return nil
}
