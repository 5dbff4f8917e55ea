package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Relay carries room payloads between server instances over Redis pub/sub.
// Each instance publishes on <prefix>:room:<projectId> and delivers what the
// others publish to its own room members.
type Relay struct {
	rc         *redis.Client
	prefix     string
	instanceID string
	log        *logrus.Entry

	readyOnce sync.Once
	ready     chan struct{}
}

type relayEnvelope struct {
	Origin    string          `json:"origin"`
	ProjectID string          `json:"projectId"`
	Exclude   string          `json:"exclude,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// DeliverFunc hands a relayed payload to local room members.
type DeliverFunc func(projectID string, payload []byte, excludeID string) int

func NewRelay(rc *redis.Client, prefix string, log *logrus.Entry) *Relay {
	id := uuid.NewString()
	return &Relay{
		rc:         rc,
		prefix:     prefix,
		instanceID: id,
		log:        log.WithField("instance", id),
		ready:      make(chan struct{}),
	}
}

func (r *Relay) InstanceID() string { return r.instanceID }

// Ready is closed once the first subscription is confirmed by Redis.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

func (r *Relay) channel(projectID string) string {
	return r.prefix + ":room:" + projectID
}

func (r *Relay) Publish(ctx context.Context, projectID, excludeID string, payload []byte) error {
	data, err := json.Marshal(relayEnvelope{
		Origin:    r.instanceID,
		ProjectID: projectID,
		Exclude:   excludeID,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	return r.rc.Publish(ctx, r.channel(projectID), data).Err()
}

// Run subscribes until ctx is done, reconnecting when the subscription drops.
func (r *Relay) Run(ctx context.Context, deliver DeliverFunc) {
	pattern := r.prefix + ":room:*"
	for {
		sub := r.rc.PSubscribe(ctx, pattern)
		if _, err := sub.Receive(ctx); err != nil {
			sub.Close()
			if ctx.Err() != nil {
				return
			}
			r.log.WithError(err).Error("relay subscribe failed, retrying")
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		r.readyOnce.Do(func() { close(r.ready) })

		r.consume(ctx, sub.Channel(), deliver)
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.log.Error("relay channel closed, reconnecting")
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (r *Relay) consume(ctx context.Context, ch <-chan *redis.Message, deliver DeliverFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.WithError(err).Warn("unable to parse relayed payload")
				continue
			}
			if env.Origin == r.instanceID {
				continue
			}
			projectID := env.ProjectID
			if projectID == "" {
				projectID = strings.TrimPrefix(msg.Channel, r.prefix+":room:")
			}
			deliver(projectID, env.Payload, env.Exclude)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
