package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeValidation          = "VALIDATION_FAILED"
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeDuplicatePhone      = "DUPLICATE_PHONE"
	TextCodeMissingToken        = "TOKEN_MISSING"
	TextCodeTokenInvalid        = "TOKEN_INVALID"
	TextCodePrincipalInactive   = "PRINCIPAL_INACTIVE"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeInvalidAdminCreds   = "INVALID_ADMIN_CREDENTIALS"
	TextCodeAccountInactive     = "ACCOUNT_INACTIVE"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeAdminNotConfigured  = "ADMIN_NOT_CONFIGURED"
	TextCodeSigningKeyMissing   = "SIGNING_KEY_NOT_CONFIGURED"
	TextCodeUploadFailed        = "UPLOAD_FAILED"
	TextCodeUploadNotConfigured = "UPLOAD_NOT_CONFIGURED"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodePasswordTooLong     = "PASSWORD_TOO_LONG"
)

// validationErrorsKey is the metadata key that holds field messages
const validationErrorsKey = "errors"

var (
	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("a user with this email already exists", errors.CategoryConflict).
				WithTextCode(TextCodeDuplicateEmail).
				WithCode(errors.CodeBadRequest)

	// ErrDuplicatePhone is returned when the phone number belongs to another user
	ErrDuplicatePhone = errors.New("a user with this phone number already exists", errors.CategoryConflict).
				WithTextCode(TextCodeDuplicatePhone).
				WithCode(errors.CodeBadRequest)

	// ErrMissingToken is returned when the request carries no bearer token
	ErrMissingToken = errors.New("authentication token is missing or malformed", errors.CategoryAuth).
			WithTextCode(TextCodeMissingToken).
			WithCode(errors.CodeUnauthorized)

	// ErrTokenInvalid covers malformed, tampered and expired tokens alike
	ErrTokenInvalid = errors.New("invalid or expired token", errors.CategoryAuth).
			WithTextCode(TextCodeTokenInvalid).
			WithCode(errors.CodeUnauthorized)

	// ErrPrincipalInactive is returned when a valid token points to a deleted
	// or deactivated user
	ErrPrincipalInactive = errors.New("user no longer exists or is inactive", errors.CategoryAuth).
				WithTextCode(TextCodePrincipalInactive).
				WithCode(errors.CodeUnauthorized)

	// ErrInvalidCredentials is the generic login failure
	ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
				WithTextCode(TextCodeInvalidCreds).
				WithCode(errors.CodeUnauthorized)

	// ErrInvalidAdminCredentials is the generic admin login failure
	ErrInvalidAdminCredentials = errors.New("invalid admin credentials", errors.CategoryAuth).
					WithTextCode(TextCodeInvalidAdminCreds).
					WithCode(errors.CodeUnauthorized)

	// ErrAccountInactive is returned on login into a deactivated account
	ErrAccountInactive = errors.New("account is deactivated", errors.CategoryAuth).
				WithTextCode(TextCodeAccountInactive).
				WithCode(errors.CodeUnauthorized)

	// ErrForbidden is returned when the principal role is not allowed
	ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(errors.CodeForbidden)

	// ErrUserNotFound is returned for unknown user ids
	ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
			WithTextCode(TextCodeUserNotFound).
			WithCode(errors.CodeNotFound)

	// ErrAdminNotConfigured is returned by admin login when either admin secret is missing
	ErrAdminNotConfigured = errors.New("server configuration error", errors.CategoryInternal).
				WithTextCode(TextCodeAdminNotConfigured).
				WithCode(errors.CodeInternal)

	// ErrSigningKeyNotConfigured is returned at startup without a signing key
	ErrSigningKeyNotConfigured = errors.New("token signing key is not configured", errors.CategoryInternal).
					WithTextCode(TextCodeSigningKeyMissing).
					WithCode(errors.CodeInternal)

	// ErrUploadFailed is returned when the media host rejects an upload
	ErrUploadFailed = errors.New("image upload failed", errors.CategoryOperation).
			WithTextCode(TextCodeUploadFailed).
			WithCode(http.StatusBadGateway)

	// ErrUploadNotConfigured is returned when no media uploader is wired
	ErrUploadNotConfigured = errors.New("image uploads are not configured", errors.CategoryInternal).
				WithTextCode(TextCodeUploadNotConfigured).
				WithCode(errors.CodeInternal)

	// ErrMismatchedHashAndPassword is returned when a password does not match its hash
	ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
					WithTextCode(TextCodeInvalidCreds).
					WithCode(errors.CodeUnauthorized)

	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
				WithTextCode(TextCodeEmptyPassword).
				WithCode(errors.CodeBadRequest)

	// ErrPasswordTooLong is returned when a password exceeds the bcrypt input limit
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes long", errors.CategoryValidation).
				WithTextCode(TextCodePasswordTooLong).
				WithCode(errors.CodeBadRequest)
)

// NewValidationError builds a validation error carrying one message per
// invalid field.
func NewValidationError(messages []string) *errors.Error {
	msgs := make([]string, len(messages))
	copy(msgs, messages)

	return errors.New("validation failed", errors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{
			validationErrorsKey: msgs,
		})
}

// ValidationMessages returns the field messages attached to a validation
// error, or nil if err is not one.
func ValidationMessages(err error) []string {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.Category != errors.CategoryValidation {
		return nil
	}

	msgs, _ := richErr.Metadata[validationErrorsKey].([]string)
	return msgs
}

// IsValidationError reports whether err is a validation failure
func IsValidationError(err error) bool {
	return hasCategory(err, errors.CategoryValidation)
}

// IsDuplicateError reports whether err is a unique constraint violation
func IsDuplicateError(err error) bool {
	return hasCategory(err, errors.CategoryConflict)
}

// IsAuthenticationError reports whether err should produce a 401
func IsAuthenticationError(err error) bool {
	return hasCategory(err, errors.CategoryAuth)
}

// IsAuthorizationError reports whether err should produce a 403
func IsAuthorizationError(err error) bool {
	return hasCategory(err, errors.CategoryAuthz)
}

// IsNotFoundError reports whether err is a missing record
func IsNotFoundError(err error) bool {
	return hasCategory(err, errors.CategoryNotFound)
}

func hasCategory(err error, category errors.Category) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == category
}
