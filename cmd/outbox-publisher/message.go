package main

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/inkledger-backend/pkg/db/models"
	"github.com/angelmondragon/inkledger-backend/pkg/enums"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

// orderingKey groups every event of one bill or one member wallet so
// subscribers see them in the order they were committed.
func orderingKey(aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) string {
	return string(aggregateType) + ":" + aggregateID.String()
}

// aggregateAttribute names the attribute subscribers filter on.
func aggregateAttribute(aggregateType enums.OutboxAggregateType) string {
	switch aggregateType {
	case enums.AggregateBill:
		return "bill_id"
	case enums.AggregateMember:
		return "member_id"
	default:
		return "aggregate_id"
	}
}

func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	env := resolved.Envelope
	attrs := map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	attrs[aggregateAttribute(event.AggregateType)] = event.AggregateID.String()
	if env.Version > 0 {
		attrs["schema_version"] = strconv.Itoa(env.Version)
	}
	if !env.OccurredAt.IsZero() {
		attrs["occurred_at"] = env.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	if env.Actor != nil {
		if env.Actor.BranchID != nil {
			attrs["branch_id"] = env.Actor.BranchID.String()
		}
		if env.Actor.Role != "" {
			attrs["actor_role"] = env.Actor.Role
		}
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: orderingKey(event.AggregateType, event.AggregateID),
	}
}

// topicPublishers hands out one ordered publisher per topic and reuses it
// across batches.
type topicPublishers struct {
	mu     sync.Mutex
	client pubSubClient
	byName map[string]publisher
}

func newTopicPublishers(client pubSubClient) *topicPublishers {
	return &topicPublishers{client: client, byName: make(map[string]publisher)}
}

func (t *topicPublishers) get(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.byName[topic]; ok {
		return pub
	}
	p := t.client.Publisher(topic)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	pub := &gcpPublisher{Publisher: p}
	t.byName[topic] = pub
	return pub
}

func (t *topicPublishers) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, pub := range t.byName {
		if gp, ok := pub.(*gcpPublisher); ok && gp.Publisher != nil {
			gp.Publisher.Stop()
		}
		delete(t.byName, name)
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

// Resume clears the paused state Pub/Sub puts an ordering key in after a
// failed publish.
func (p *gcpPublisher) Resume(key string) {
	if p == nil || p.Publisher == nil {
		return
	}
	p.Publisher.ResumePublish(key)
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
