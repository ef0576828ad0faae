package auth

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Users is the credential store contract. Implementations must enforce
// uniqueness of email and phone number at the storage layer.
type Users interface {
	FindOne(ctx context.Context, filter UserFilter) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdateByID(ctx context.Context, id string, patch func(*User)) (*User, error)
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context) ([]*User, error)
}

// UploadedImage is an asset stored by a MediaUploader
type UploadedImage struct {
	URL string
	// ID is the host side identifier used to remove the asset
	ID string
}

// MediaUploader stores bytes with a third party media host
type MediaUploader interface {
	UploadImage(ctx context.Context, r io.Reader, filename string) (*UploadedImage, error)
	DeleteImage(ctx context.Context, id string) error
}

// Clock returns the current time
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
