package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/harborline/supplychain-backend/pkg/config"
	"github.com/harborline/supplychain-backend/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

var errProjectIDRequired = errors.New("gcp project id is required")

// PubSubSink publishes domain events to the configured Pub/Sub topic.
type PubSubSink struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	projectID string
	topic     string
}

// NewPubSubSink creates a Pub/Sub v2 client and verifies the domain topic exists.
func NewPubSubSink(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*PubSubSink, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.DomainTopic) == "" {
		return nil, errors.New("pubsub domain topic is required")
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	s := &PubSubSink{
		client:    psClient,
		projectID: gcp.ProjectID,
		topic:     cfg.DomainTopic,
	}

	if err := s.ensureTopicExists(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	s.publisher = psClient.Publisher(s.topicResourceName())

	if logg != nil {
		logg.Info(ctx, "pubsub event sink initialized")
	}

	return s, nil
}

func (s *PubSubSink) ensureTopicExists(ctx context.Context) error {
	fullName := s.topicResourceName()
	_, err := s.client.TopicAdminClient.GetTopic(
		ctx,
		&pubsubpb.GetTopicRequest{Topic: fullName},
	)
	if err != nil {
		// v2 uses gRPC errors; NotFound means the topic doesn't exist.
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", s.topic)
		}
		return fmt.Errorf("checking topic %q: %w", s.topic, err)
	}
	return nil
}

func (s *PubSubSink) topicResourceName() string {
	n := strings.TrimSpace(s.topic)
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", s.projectID, n)
}

// Publish delivers a single event, blocking until the server acknowledges it
// or the publish timeout lapses.
func (s *PubSubSink) Publish(ctx context.Context, event Event) error {
	if s == nil || s.publisher == nil {
		return errors.New("pubsub sink not initialized")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type":     string(event.Type),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    event.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := s.publisher.Publish(publishCtx, msg)
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}
	return nil
}

// Close releases the Pub/Sub client resources.
func (s *PubSubSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	if s.publisher != nil {
		s.publisher.Stop()
	}
	return s.client.Close()
}
