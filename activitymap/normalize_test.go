package activitymap_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/goliatone/go-auth-accounts"
	"github.com/goliatone/go-auth-accounts/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		ActorID:   "user-100",
		UserID:    "user-100",
		Metadata: map[string]any{
			"email": "jane@example.com",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventLoginFailure) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventLoginFailure, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "accounts" {
		t.Fatalf("expected channel accounts, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["email"] != "jane@example.com" {
		t.Fatalf("expected metadata email, got %#v", out.Metadata["email"])
	}
	if out.Metadata[activitymap.MetadataKeyFlow] != "login" {
		t.Fatalf("expected metadata flow login, got %#v", out.Metadata[activitymap.MetadataKeyFlow])
	}
	if out.Metadata[activitymap.MetadataKeyOutcome] != "failure" {
		t.Fatalf("expected metadata outcome failure, got %#v", out.Metadata[activitymap.MetadataKeyOutcome])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventUserDeleted,
		ActorID:   auth.AdminPrincipalID,
		UserID:    "user-200",
		Metadata: map[string]any{
			activitymap.MetadataKeyFlow: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-200" {
		t.Fatalf("expected object_id user-200, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyFlow] != "existing" {
		t.Fatalf("expected existing flow preserved, got %#v", out.Metadata[activitymap.MetadataKeyFlow])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyOutcome]; ok {
		t.Fatalf("expected no outcome for user.deleted, got %#v", out.Metadata)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  auth.ActivityEvent{ActorID: "actor-1", UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses default fallback when actor missing",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback when actor missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

func TestZapSinkWritesEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := activitymap.NewZapSink(zap.New(core))

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventSignup,
		ActorID:   "user-1",
		UserID:    "user-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.FilterMessage("activity").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["verb"] != string(auth.ActivityEventSignup) {
		t.Fatalf("expected verb field, got %#v", fields["verb"])
	}
	if fields["object_id"] != "user-1" {
		t.Fatalf("expected object_id field, got %#v", fields["object_id"])
	}
}
