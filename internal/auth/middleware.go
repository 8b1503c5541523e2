// ABOUTME: JWT session tokens and bearer authentication for the fake management API.
// ABOUTME: Issues HS256 tokens at login and resolves the calling user for each request.

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apierrors "github.com/2389/hbx/internal/errors"
)

type contextKey string

const (
	userContextKey contextKey = "user"
	slotContextKey contextKey = "user-slot"
)

// Anonymous is reported for requests that carry no valid token.
const Anonymous = "anonymous"

// Claims carried in every access token.
type Claims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Service signs and validates access tokens.
type Service struct {
	secret []byte
	expiry time.Duration
}

func NewService(secret string, expiry time.Duration) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if expiry <= 0 {
		return nil, errors.New("token expiry must be positive")
	}
	return &Service{secret: []byte(secret), expiry: expiry}, nil
}

// Expiry is the lifetime of issued tokens.
func (s *Service) Expiry() time.Duration {
	return s.expiry
}

// Issue signs a token for the given user.
func (s *Service) Issue(username, name string, admin bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Name:     name,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    "hbx",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Username validates a token and returns its subject. It has the shape of a
// socket token validator.
func (s *Service) Username(tokenString string) (string, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// Middleware rejects /api requests without a valid bearer token, except the
// login endpoint. Everything outside /api passes through untouched.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "Authentication required")
			return
		}

		claims, err := s.Validate(token)
		if err != nil {
			apierrors.WriteError(w, http.StatusUnauthorized, apierrors.ErrUnauthorized, "Invalid or expired token")
			return
		}

		if slot, ok := r.Context().Value(slotContextKey).(*userSlot); ok {
			slot.set(claims.Username)
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func isPublic(path string) bool {
	switch path {
	case "/api/auth/login", "/api/auth/settings":
		return true
	}
	return false
}

type userSlot struct {
	mu       sync.Mutex
	username string
}

func (s *userSlot) set(username string) {
	s.mu.Lock()
	s.username = username
	s.mu.Unlock()
}

func (s *userSlot) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username == "" {
		return Anonymous
	}
	return s.username
}

// TrackUser lets middleware running before Middleware learn who the caller
// turned out to be. The returned func reports Anonymous until a token is accepted.
func TrackUser(ctx context.Context) (context.Context, func() string) {
	slot := &userSlot{}
	return context.WithValue(ctx, slotContextKey, slot), slot.get
}

// WithClaims stores the caller on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// ClaimsFromContext returns the caller's claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(userContextKey).(*Claims)
	return claims, ok && claims != nil
}

// UserFromContext returns the caller's username or Anonymous.
func UserFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok && claims.Username != "" {
		return claims.Username
	}
	return Anonymous
}

func extractBearer(authHeader string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
