package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies signed, self-expiring session tokens
type TokenService struct {
	signingKey    []byte
	issuer        string
	userTokenTTL  time.Duration
	adminTokenTTL time.Duration
	now           Clock
	logger        Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenClock overrides the time source used to stamp and verify tokens
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a TokenService from the read-only settings
func NewTokenService(settings Settings, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey:    []byte(settings.GetSigningKey()),
		issuer:        settings.GetIssuer(),
		userTokenTTL:  settings.GetUserTokenTTL(),
		adminTokenTTL: settings.GetAdminTokenTTL(),
		now:           time.Now,
		logger:        defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// Issue signs a token for principalID that expires ttl after issuance
func (ts *TokenService) Issue(principalID string, ttl time.Duration, opts ...ClaimsOption) (string, error) {
	if strings.TrimSpace(principalID) == "" {
		return "", errors.New("principal id must not be empty", errors.CategoryInternal)
	}

	if ttl <= 0 {
		return "", errors.New("token ttl must be positive", errors.CategoryInternal)
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID: principalID,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(claims)
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// IssueUserToken issues a token for a regular user, carrying only the id
func (ts *TokenService) IssueUserToken(userID string) (string, error) {
	return ts.Issue(userID, ts.userTokenTTL)
}

// IssueAdminToken issues a token for the admin principal
func (ts *TokenService) IssueAdminToken(email string) (string, error) {
	return ts.Issue(AdminPrincipalID, ts.adminTokenTTL,
		WithEmailClaim(email),
		WithRoleClaim(RoleAdmin),
	)
}

// Verify parses and validates a token. Malformed, tampered and expired tokens
// all yield ErrTokenInvalid.
func (ts *TokenService) Verify(tokenString string) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("token verification failed: %v", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.PrincipalID() == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
