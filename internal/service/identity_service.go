package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/wastewatch-api/internal/models"
	appErrors "github.com/noah-isme/wastewatch-api/pkg/errors"
)

// IdentityResolver returns the caller attached to ctx, or nil for anonymous requests.
type IdentityResolver interface {
	Caller(ctx context.Context) *models.Caller
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller *models.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext extracts the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) *models.Caller {
	caller, _ := ctx.Value(callerKey{}).(*models.Caller)
	return caller
}

// ContextIdentity resolves callers from the request context.
type ContextIdentity struct{}

// Caller implements IdentityResolver.
func (ContextIdentity) Caller(ctx context.Context) *models.Caller {
	return CallerFromContext(ctx)
}

// IdentityClaims are the JWT claims issued by the identity provider.
type IdentityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IdentityConfig configures token verification.
type IdentityConfig struct {
	Secret string
	Issuer string
}

// IdentityService verifies bearer tokens issued by the external identity provider.
type IdentityService struct {
	config IdentityConfig
	now    func() time.Time
}

// NewIdentityService constructs an identity service.
func NewIdentityService(cfg IdentityConfig) *IdentityService {
	return &IdentityService{config: cfg, now: time.Now}
}

// ValidateToken parses an HS256 token and returns the caller it identifies.
func (s *IdentityService) ValidateToken(tokenString string) (*models.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthenticated.Code, appErrors.ErrUnauthenticated.Status, "invalid token")
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid token claims")
	}

	return &models.Caller{UserID: claims.Subject, Name: claims.Name}, nil
}

// IssueToken signs a token for caller. It backs the development token command and tests.
func (s *IdentityService) IssueToken(caller models.Caller, ttl time.Duration) (string, error) {
	if caller.UserID == "" {
		return "", fmt.Errorf("user id required")
	}
	issuedAt := s.now()
	claims := IdentityClaims{
		Name: caller.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}
