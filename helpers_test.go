package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-accounts"
)

const (
	testSigningKey    = "test-signing-key"
	testAdminEmail    = "root@example.com"
	testAdminPassword = "s3cret-admin"
)

func testSettings() auth.Settings {
	return auth.Settings{
		SigningKey:    testSigningKey,
		Issuer:        "accounts-test",
		AdminEmail:    testAdminEmail,
		AdminPassword: testAdminPassword,
	}
}

// testClock is a settable clock safe for concurrent use
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupUsersRepo(t *testing.T, opts ...auth.UsersOption) *auth.UsersRepository {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		bunDB.Close()
	})

	repo := auth.NewUsersRepository(bunDB, opts...)
	require.NoError(t, repo.EnsureSchema(context.Background()))

	return repo
}

type testEnv struct {
	clock    *testClock
	users    *auth.UsersRepository
	auther   *auth.Auther
	accounts *auth.AccountService
	events   *eventRecorder
}

func newTestEnv(t *testing.T, settings auth.Settings, accountOpts ...auth.AccountOption) *testEnv {
	t.Helper()

	clock := newTestClock()
	users := setupUsersRepo(t, auth.WithUsersClock(clock.Now))
	events := &eventRecorder{}

	auther := auth.NewAuthenticator(users, settings).
		WithTokenService(auth.NewTokenService(settings, auth.WithTokenClock(clock.Now))).
		WithClock(clock.Now).
		WithActivitySink(events)

	opts := append([]auth.AccountOption{
		auth.WithAccountClock(clock.Now),
		auth.WithAccountActivitySink(events),
	}, accountOpts...)

	return &testEnv{
		clock:    clock,
		users:    users,
		auther:   auther,
		accounts: auth.NewAccountService(users, opts...),
		events:   events,
	}
}

func (e *testEnv) signup(t *testing.T, email, phone string) (*auth.User, string) {
	t.Helper()

	user, token, err := e.auther.Signup(context.Background(), auth.SignupInput{
		Email:     email,
		Phone:     phone,
		Password:  "password123",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	return user, token
}

type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// messageOf returns the client facing message of a rich error, without the
// category and text code prefix that Error() carries.
func messageOf(t *testing.T, err error) string {
	t.Helper()

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr), "expected *errors.Error, got %T", err)
	return richErr.Message
}
