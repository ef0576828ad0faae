package mongostore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	auth "github.com/goliatone/go-auth-accounts"
	"github.com/goliatone/go-auth-accounts/repository/mongostore"
)

// setupStore connects to MONGO_URI and returns a store on a throwaway
// database. Tests are skipped when no server is configured.
func setupStore(t *testing.T) *mongostore.Users {
	t.Helper()

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database(fmt.Sprintf("accounts_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Drop(ctx)
		client.Disconnect(ctx)
	})

	store := mongostore.NewUsers(db)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func newUser(email string, phone string) *auth.User {
	u := &auth.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Jane",
		IsActive:     true,
	}
	if phone != "" {
		u.Phone = &phone
	}
	return u
}

func TestUsers_CreateAndFind(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newUser(" Jane@Example.com ", "+14155552671"))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, auth.RoleUser, created.Role)
	assert.Equal(t, auth.GenderUndisclosed, created.Gender)

	found, err := store.FindByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "+14155552671", *found.Phone)

	byEmail, err := store.FindOne(ctx, auth.UserFilter{Email: "jane@example.com"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = store.FindOne(ctx, auth.UserFilter{Email: "jane@example.com", ExcludeID: created.ID.String()})
	assert.True(t, auth.IsNotFoundError(err))

	_, err = store.FindByID(ctx, "not-a-uuid")
	assert.True(t, auth.IsNotFoundError(err))
}

func TestUsers_UniqueIndexes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, newUser("a@example.com", "+14155552671"))
	require.NoError(t, err)

	_, err = store.Create(ctx, newUser("a@example.com", ""))
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	_, err = store.Create(ctx, newUser("b@example.com", "+14155552671"))
	assert.ErrorIs(t, err, auth.ErrDuplicatePhone)

	// users without a phone do not collide with each other
	_, err = store.Create(ctx, newUser("c@example.com", ""))
	require.NoError(t, err)
	_, err = store.Create(ctx, newUser("d@example.com", ""))
	require.NoError(t, err)
}

func TestUsers_UpdateDeleteList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, newUser("first@example.com", ""))
	require.NoError(t, err)
	_, err = store.Create(ctx, newUser("second@example.com", ""))
	require.NoError(t, err)

	updated, err := store.UpdateByID(ctx, first.ID.String(), func(u *auth.User) {
		u.Bio = "hello"
		u.IsActive = false
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)
	assert.False(t, updated.IsActive)

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "first@example.com", users[0].Email)

	require.NoError(t, store.DeleteByID(ctx, first.ID.String()))
	assert.True(t, auth.IsNotFoundError(store.DeleteByID(ctx, first.ID.String())))

	_, err = store.UpdateByID(ctx, first.ID.String(), nil)
	assert.True(t, auth.IsNotFoundError(err))
}
