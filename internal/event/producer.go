package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	pkgkafka "github.com/ecclesia-hub/admin-client/pkg/kafka"
	"github.com/ecclesia-hub/admin-client/pkg/logger"
)

// Kafka topics for session lifecycle events.
var (
	TopicLoggedIn         = pkgkafka.Topic("session", "logged_in")
	TopicRegistered       = pkgkafka.Topic("session", "registered")
	TopicProfileCompleted = pkgkafka.Topic("session", "profile_completed")
	TopicLoggedOut        = pkgkafka.Topic("session", "logged_out")
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// SourceAdminClient identifies events originating from the admin client.
const SourceAdminClient = "admin-client"

// SessionData is the payload shared by all session events.
type SessionData struct {
	UserID          int64  `json:"user_id"`
	Email           string `json:"email"`
	Role            string `json:"role,omitempty"`
	ProfileComplete bool   `json:"profile_complete"`
	Reason          string `json:"reason,omitempty"`
}

// Publisher is the subset of *pkgkafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes session lifecycle events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishLoggedIn publishes a session.logged_in event.
func (p *Producer) PublishLoggedIn(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicLoggedIn, user, "")
}

// PublishRegistered publishes a session.registered event.
func (p *Producer) PublishRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicRegistered, user, "")
}

// PublishProfileCompleted publishes a session.profile_completed event.
func (p *Producer) PublishProfileCompleted(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicProfileCompleted, user, "")
}

// PublishLoggedOut publishes a session.logged_out event with the logout reason.
func (p *Producer) PublishLoggedOut(ctx context.Context, user *domain.User, reason string) error {
	return p.publish(ctx, TopicLoggedOut, user, reason)
}

func (p *Producer) publish(ctx context.Context, topic string, user *domain.User, reason string) error {
	data := SessionData{
		UserID:          user.ID,
		Email:           user.Email,
		Role:            user.Role,
		ProfileComplete: user.ProfileComplete,
		Reason:          reason,
	}

	event, err := pkgkafka.NewEvent(topic, user.IDString(), AggregateTypeUser, SourceAdminClient, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("church_id", logger.ChurchIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published session event",
		slog.String("topic", topic),
		slog.Int64("user_id", user.ID),
	)
	return nil
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishLoggedIn(context.Context, *domain.User) error          { return nil }
func (Nop) PublishRegistered(context.Context, *domain.User) error        { return nil }
func (Nop) PublishProfileCompleted(context.Context, *domain.User) error  { return nil }
func (Nop) PublishLoggedOut(context.Context, *domain.User, string) error { return nil }
