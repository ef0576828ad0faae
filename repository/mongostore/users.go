// Package mongostore implements the credential store on MongoDB.
package mongostore

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	auth "github.com/goliatone/go-auth-accounts"
)

// DefaultCollection is the collection users are stored in
const DefaultCollection = "users"

// userDocument is the stored shape of a user. Phone is omitted when empty so
// the partial unique index only covers users that have one.
type userDocument struct {
	ID             string            `bson:"_id"`
	Email          string            `bson:"email"`
	Phone          *string           `bson:"phone_number,omitempty"`
	PhoneRegion    string            `bson:"phone_region,omitempty"`
	PasswordHash   string            `bson:"password_hash"`
	FirstName      string            `bson:"first_name,omitempty"`
	LastName       string            `bson:"last_name,omitempty"`
	DateOfBirth    *time.Time        `bson:"date_of_birth,omitempty"`
	Gender         string            `bson:"gender"`
	Address        *auth.Address     `bson:"address,omitempty"`
	Bio            string            `bson:"bio,omitempty"`
	SocialLinks    map[string]string `bson:"social_links,omitempty"`
	ProfilePicture string            `bson:"profile_picture,omitempty"`
	IsActive       bool              `bson:"is_active"`
	IsVerified     bool              `bson:"is_verified"`
	Role           string            `bson:"role"`
	CreatedAt      time.Time         `bson:"created_at"`
	UpdatedAt      time.Time         `bson:"updated_at"`
	LastLoginAt    *time.Time        `bson:"last_login_at,omitempty"`
}

// Users is a MongoDB backed auth.Users
type Users struct {
	coll *mongo.Collection
	now  auth.Clock
}

// Option configures Users
type Option func(*Users)

// WithClock sets the clock used for timestamps
func WithClock(clock auth.Clock) Option {
	return func(u *Users) {
		if clock != nil {
			u.now = clock
		}
	}
}

// WithCollection overrides the collection name
func WithCollection(db *mongo.Database, name string) Option {
	return func(u *Users) {
		u.coll = db.Collection(name)
	}
}

// NewUsers returns a store on the users collection of db
func NewUsers(db *mongo.Database, opts ...Option) *Users {
	u := &Users{
		coll: db.Collection(DefaultCollection),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// EnsureSchema creates the unique indexes on email and phone number
func (u *Users) EnsureSchema(ctx context.Context) error {
	_, err := u.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("users_email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().
				SetName("users_phone_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"phone_number": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "role", Value: 1}},
			Options: options.Index().SetName("users_role_idx"),
		},
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create user indexes")
	}
	return nil
}

func (u *Users) FindOne(ctx context.Context, filter auth.UserFilter) (*auth.User, error) {
	if filter.IsEmpty() {
		return nil, errors.New("user filter requires email or phone", errors.CategoryBadInput)
	}

	query := bson.M{}
	if filter.Email != "" {
		query["email"] = auth.NormalizeEmail(filter.Email)
	}
	if filter.Phone != "" {
		query["phone_number"] = filter.Phone
	}
	if filter.ExcludeID != "" {
		query["_id"] = bson.M{"$ne": filter.ExcludeID}
	}

	return u.findOne(ctx, query)
}

func (u *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return nil, auth.ErrUserNotFound
	}
	return u.findOne(ctx, bson.M{"_id": strings.TrimSpace(id)})
}

func (u *Users) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	now := u.now()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = auth.RoleUser
	}
	if user.Gender == "" {
		user.Gender = auth.GenderUndisclosed
	}
	user.Email = auth.NormalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := u.coll.InsertOne(ctx, toDocument(user)); err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	return user, nil
}

// UpdateByID loads the record, applies patch and replaces the document. The
// replace is conditioned on updated_at so a concurrent writer is not
// silently overwritten.
func (u *Users) UpdateByID(ctx context.Context, id string, patch func(*auth.User)) (*auth.User, error) {
	user, err := u.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := user.UpdatedAt
	if patch != nil {
		patch(user)
	}
	user.Email = auth.NormalizeEmail(user.Email)
	user.UpdatedAt = u.now()

	res, err := u.coll.ReplaceOne(ctx,
		bson.M{"_id": user.ID.String(), "updated_at": previous},
		toDocument(user),
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update user")
	}

	if res.MatchedCount == 0 {
		return nil, errors.New("user was modified concurrently", errors.CategoryConflict).
			WithTextCode("CONCURRENT_UPDATE").
			WithCode(errors.CodeConflict)
	}

	return user, nil
}

func (u *Users) DeleteByID(ctx context.Context, id string) error {
	res, err := u.coll.DeleteOne(ctx, bson.M{"_id": strings.TrimSpace(id)})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}
	if res.DeletedCount == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (u *Users) List(ctx context.Context) ([]*auth.User, error) {
	cursor, err := u.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to decode users")
	}

	users := make([]*auth.User, 0, len(docs))
	for i := range docs {
		users = append(users, fromDocument(&docs[i]))
	}
	return users, nil
}

func (u *Users) findOne(ctx context.Context, query bson.M) (*auth.User, error) {
	doc := &userDocument{}
	if err := u.coll.FindOne(ctx, query).Decode(doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to find user")
	}
	return fromDocument(doc), nil
}

func duplicateError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if strings.Contains(err.Error(), "phone") {
		return auth.ErrDuplicatePhone
	}
	return auth.ErrDuplicateEmail
}

func toDocument(user *auth.User) *userDocument {
	return &userDocument{
		ID:             user.ID.String(),
		Email:          user.Email,
		Phone:          user.Phone,
		PhoneRegion:    user.PhoneRegion,
		PasswordHash:   user.PasswordHash,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		DateOfBirth:    user.DateOfBirth,
		Gender:         string(user.Gender),
		Address:        user.Address,
		Bio:            user.Bio,
		SocialLinks:    user.SocialLinks,
		ProfilePicture: user.ProfilePicture,
		IsActive:       user.IsActive,
		IsVerified:     user.IsVerified,
		Role:           string(user.Role),
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
		LastLoginAt:    user.LastLoginAt,
	}
}

func fromDocument(doc *userDocument) *auth.User {
	id, _ := uuid.Parse(doc.ID)
	return &auth.User{
		ID:             id,
		Email:          doc.Email,
		Phone:          doc.Phone,
		PhoneRegion:    doc.PhoneRegion,
		PasswordHash:   doc.PasswordHash,
		FirstName:      doc.FirstName,
		LastName:       doc.LastName,
		DateOfBirth:    doc.DateOfBirth,
		Gender:         auth.Gender(doc.Gender),
		Address:        doc.Address,
		Bio:            doc.Bio,
		SocialLinks:    doc.SocialLinks,
		ProfilePicture: doc.ProfilePicture,
		IsActive:       doc.IsActive,
		IsVerified:     doc.IsVerified,
		Role:           auth.Role(doc.Role),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
		LastLoginAt:    doc.LastLoginAt,
	}
}
