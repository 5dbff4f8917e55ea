package realtime

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"taskboard/internal/models"
)

// TransportError is a failed delivery to a single peer. It is logged and
// never reported back to the originator.
type TransportError struct {
	SessionID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deliver to session %s: %v", e.SessionID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Publisher forwards a room payload to other server instances.
type Publisher interface {
	Publish(ctx context.Context, projectID, excludeID string, payload []byte) error
}

// Broadcaster fans events out to the members of a room.
type Broadcaster struct {
	registry *Registry
	log      *logrus.Entry
	relay    Publisher
}

func NewBroadcaster(registry *Registry, log *logrus.Entry) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// WithRelay makes every broadcast also reach other instances. Call before use.
func (b *Broadcaster) WithRelay(p Publisher) *Broadcaster {
	b.relay = p
	return b
}

// Broadcast delivers ev to every member of the room except exclude (which may
// be nil) and returns the number of local deliveries that were accepted.
// Successive calls from one goroutine reach each receiver in call order.
func (b *Broadcaster) Broadcast(ctx context.Context, projectID string, ev models.Event, exclude Subscriber) int {
	payload, err := encode(MessageFromEvent(ev))
	if err != nil {
		b.log.WithError(err).WithField("project", projectID).Error("encode event")
		return 0
	}

	excludeID := ""
	if exclude != nil {
		excludeID = exclude.ID()
	}

	delivered := b.DeliverLocal(projectID, payload, excludeID)

	if b.relay != nil {
		if err := b.relay.Publish(ctx, projectID, excludeID, payload); err != nil {
			b.log.WithError(err).WithFields(logrus.Fields{
				"project":     projectID,
				"error_class": "transport",
			}).Warn("relay publish failed")
		}
	}

	b.log.WithFields(logrus.Fields{
		"project":   projectID,
		"kind":      ev.Kind,
		"task":      ev.TaskID,
		"delivered": delivered,
	}).Debug("broadcast")
	return delivered
}

// DeliverLocal writes an encoded payload to this instance's room members.
func (b *Broadcaster) DeliverLocal(projectID string, payload []byte, excludeID string) int {
	delivered := 0
	for _, s := range b.registry.MembersOf(projectID) {
		if excludeID != "" && s.ID() == excludeID {
			continue
		}
		if err := s.Deliver(payload); err != nil {
			terr := &TransportError{SessionID: s.ID(), Err: err}
			b.log.WithError(terr).WithFields(logrus.Fields{
				"project":     projectID,
				"session":     s.ID(),
				"error_class": "transport",
			}).Warn("delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}
