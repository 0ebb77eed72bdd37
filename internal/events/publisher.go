// Package events announces task lifecycle changes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/observability"
)

// Event types published by the tasks API.
const (
	TypeTaskCreated = "task.created"
	TypeTaskGraded  = "task.graded"
)

// Envelope is the wire format of every published event.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// TaskCreated is published after a teacher stores a task.
type TaskCreated struct {
	TaskID    uint   `json:"task_id"`
	ModuleID  uint   `json:"module_id"`
	TeacherID uint   `json:"teacher_id"`
	TaskType  string `json:"task_type"`
	Points    int    `json:"points"`
}

// TaskGraded is published after a submission was recorded.
type TaskGraded struct {
	TaskID        uint `json:"task_id"`
	StudentID     uint `json:"student_id"`
	IsCorrect     bool `json:"is_correct"`
	PointsEarned  int  `json:"points_earned"`
	PointsAwarded bool `json:"points_awarded"`
}

// Publisher delivers events to the configured transports.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// BrokerPublisher fans events out over Redis pub/sub and NATS. Either transport may be nil.
type BrokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBrokerPublisher derives the Redis channel and NATS subject from channelBase.
func NewBrokerPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *BrokerPublisher {
	base := strings.TrimSpace(channelBase)
	if base == "" {
		base = "tasks"
	}

	return &BrokerPublisher{
		redis:        redisClient,
		redisChannel: base + ":events",
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(base, ":", ".") + ".events",
		logger:       logger.With().Str("component", "event_publisher").Logger(),
		now:          time.Now,
	}
}

// RedisChannel returns the pub/sub channel events are published on.
func (p *BrokerPublisher) RedisChannel() string {
	return p.redisChannel
}

// NATSSubject returns the subject events are published on.
func (p *BrokerPublisher) NATSSubject() string {
	return p.natsSubject
}

func (p *BrokerPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Data:       data,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	var errs []error
	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			observability.EventsFailed().WithLabelValues("redis").Inc()
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}

	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.EventsFailed().WithLabelValues("nats").Inc()
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	p.logger.Debug().Str("event_id", envelope.ID).Str("event_type", eventType).Msg("event published")
	return nil
}
