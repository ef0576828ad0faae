package activitymap

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	auth "github.com/goliatone/go-auth-accounts"
)

const (
	// MetadataKeyFlow stores the flow segment of the event type, e.g. "login".
	MetadataKeyFlow = "flow"
	// MetadataKeyOutcome stores the trailing success/failure segment when present.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "accounts"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.ActorID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// NewZapSink returns an ActivitySink that writes normalized events as
// structured log entries.
func NewZapSink(logger *zap.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = zap.NewNop()
	}

	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		n := Normalize(event, opts...)
		logger.Info("activity",
			zap.String("verb", n.Verb),
			zap.String("actor_id", n.ActorID),
			zap.String("object_type", n.ObjectType),
			zap.String("object_id", n.ObjectID),
			zap.String("channel", n.Channel),
			zap.Any("metadata", n.Metadata),
			zap.Time("occurred_at", n.OccurredAt),
		)
		return nil
	})
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	parts := strings.Split(string(event.EventType), ".")
	if len(parts) >= 2 {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyFlow]; !exists {
			metadata[MetadataKeyFlow] = parts[1]
		}
	}

	if len(parts) >= 3 {
		switch last := parts[len(parts)-1]; last {
		case "success", "failure":
			metadata[MetadataKeyOutcome] = last
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
