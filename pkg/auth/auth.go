package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smith3v/study-tracker/pkg/config"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
)

// Credentials identify the caller of a store operation. They are passed
// explicitly instead of being looked up from ambient request state.
type Credentials struct {
	Subject     string
	DisplayName string
}

// Telegram returns the credentials of a Telegram user.
func Telegram(userID int64, displayName string) Credentials {
	return Credentials{Subject: fmt.Sprintf("telegram:%d", userID), DisplayName: displayName}
}

func (c Credentials) Authenticated() bool {
	return strings.TrimSpace(c.Subject) != ""
}

// User resolves the credentials to a stored user, creating it on first use.
func (c Credentials) User(ctx context.Context) (db.User, error) {
	return db.ResolveUser(ctx, c.Subject, c.DisplayName)
}

// CustomClaims carries the optional display name of the token holder.
type CustomClaims struct {
	Name string `json:"name"`
}

func (c *CustomClaims) Validate(context.Context) error {
	return nil
}

// FromRequest extracts the credentials that the middleware validated.
func FromRequest(r *http.Request) (Credentials, error) {
	claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok || claims.RegisteredClaims.Subject == "" {
		return Credentials{}, db.NewError("auth.FromRequest", db.ErrNotAuthenticated)
	}
	creds := Credentials{Subject: claims.RegisteredClaims.Subject}
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok && custom != nil {
		creds.DisplayName = custom.Name
	}
	return creds, nil
}

// EnsureValidToken returns middleware that rejects requests without a valid
// HS256 bearer token signed with cfg.Secret.
func EnsureValidToken(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth secret is not configured")
	}
	secret := []byte(cfg.Secret)
	keyFunc := func(context.Context) (interface{}, error) {
		return secret, nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.Issuer,
		cfg.Audience,
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Debug("rejected token", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"not authenticated"}`))
		}),
	)

	return func(next http.Handler) http.Handler {
		return middleware.CheckJWT(next)
	}, nil
}

// CreateToken issues a token the middleware accepts. It is used for local
// development and tests; production tokens come from the identity provider.
func CreateToken(cfg config.AuthConfig, subject, name string, now time.Time) (string, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return "", errors.New("auth secret is not configured")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{
			"sub":  subject,
			"name": name,
			"iss":  cfg.Issuer,
			"aud":  cfg.Audience,
			"iat":  now.Unix(),
			"exp":  now.Add(ttl).Unix(),
		})
	return token.SignedString([]byte(cfg.Secret))
}
