package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UsersRepository is the bun backed credential store
type UsersRepository struct {
	repository.Repository[*User]
	db  *bun.DB
	now Clock
}

var _ Users = (*UsersRepository)(nil)

// UsersOption configures the bun backed users repository
type UsersOption func(*UsersRepository)

// WithUsersClock overrides the time source used for timestamps
func WithUsersClock(clock Clock) UsersOption {
	return func(u *UsersRepository) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUsersRepository returns a Users store over any bun dialect
func NewUsersRepository(db *bun.DB, opts ...UsersOption) *UsersRepository {
	repo := &UsersRepository{
		Repository: repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
			NewRecord: func() *User { return &User{} },
			GetID: func(u *User) uuid.UUID {
				if u == nil {
					return uuid.Nil
				}
				return u.ID
			},
			SetID: func(u *User, id uuid.UUID) {
				if u != nil {
					u.ID = id
				}
			},
		}),
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

// EnsureSchema creates the users table and its unique indexes
func (a *UsersRepository) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create users table")
	}

	if _, err := a.db.NewCreateIndex().
		Model((*User)(nil)).
		Index("users_role_idx").
		IfNotExists().
		Column("role").
		Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create users role index")
	}

	return nil
}

func (a *UsersRepository) FindOne(ctx context.Context, filter UserFilter) (*User, error) {
	if filter.IsEmpty() {
		return nil, errors.New("user filter requires email or phone", errors.CategoryBadInput)
	}

	record, err := a.Get(ctx, selectByFilter(filter))
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to find user")
	}

	return record, nil
}

func (a *UsersRepository) FindByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrUserNotFound
	}

	record, err := a.GetByID(ctx, uid.String())
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to find user by id")
	}

	return record, nil
}

func (a *UsersRepository) Create(ctx context.Context, user *User) (*User, error) {
	prepareUserDefaults(user, a.now())

	created, err := a.CreateTx(ctx, a.db, user)
	if err != nil {
		if dup := a.conflictFor(ctx, user, err); dup != nil {
			return nil, dup
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	return created, nil
}

// UpdateByID loads the record, applies patch and persists the result in a
// single transaction. UpdatedAt is always refreshed.
func (a *UsersRepository) UpdateByID(ctx context.Context, id string, patch func(*User)) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrUserNotFound
	}

	var patched, updated *User

	err = a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := a.GetByIDTx(ctx, tx, uid.String())
		if err != nil {
			if isRecordNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}

		if patch != nil {
			patch(record)
		}
		record.ID = uid
		record.Email = NormalizeEmail(record.Email)
		record.UpdatedAt = a.now()
		patched = record

		updated, err = a.UpdateTx(ctx, tx, record, repository.UpdateByID(uid.String()))
		return err
	})

	if err != nil {
		if patched != nil {
			if dup := a.conflictFor(ctx, patched, err); dup != nil {
				return nil, dup
			}
		}
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Category == errors.CategoryNotFound {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update user")
	}

	return updated, nil
}

func (a *UsersRepository) DeleteByID(ctx context.Context, id string) error {
	record, err := a.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := a.Delete(ctx, record); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}

	return nil
}

func (a *UsersRepository) List(ctx context.Context) ([]*User, error) {
	records, _, err := a.Repository.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("created_at ASC")
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func selectByFilter(filter UserFilter) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.Email != "" {
			q = q.Where("?TableAlias.email = ?", NormalizeEmail(filter.Email))
		}

		if filter.Phone != "" {
			q = q.Where("?TableAlias.phone_number = ?", filter.Phone)
		}

		if filter.ExcludeID != "" {
			q = q.Where("?TableAlias.id != ?", filter.ExcludeID)
		}

		return q.Limit(1)
	}
}

// conflictFor attributes a failed insert to the email or phone column. The
// driver message is checked first, then the stored rows.
func (a *UsersRepository) conflictFor(ctx context.Context, user *User, err error) *errors.Error {
	if dup := uniqueViolation(err); dup != nil {
		return dup
	}

	if _, findErr := a.FindOne(ctx, UserFilter{Email: user.Email, ExcludeID: user.ID.String()}); findErr == nil {
		return ErrDuplicateEmail
	}

	if phone := user.PhoneNumber(); phone != "" {
		if _, findErr := a.FindOne(ctx, UserFilter{Phone: phone, ExcludeID: user.ID.String()}); findErr == nil {
			return ErrDuplicatePhone
		}
	}

	return nil
}

func isRecordNotFound(err error) bool {
	return repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

// uniqueViolation maps driver specific unique constraint failures to the
// duplicate errors. SQLite reports "UNIQUE constraint failed: users.email",
// postgres reports "duplicate key value violates unique constraint".
func uniqueViolation(err error) *errors.Error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint") &&
		!strings.Contains(msg, "duplicate key") {
		return nil
	}

	switch {
	case strings.Contains(msg, "phone"):
		return ErrDuplicatePhone
	case strings.Contains(msg, "email"):
		return ErrDuplicateEmail
	default:
		return ErrDuplicateEmail
	}
}
