// Package identity resolves the current account from a signed bearer token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/launchpad/internal/domain"
	"github.com/ashureev/launchpad/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

// Account is the authenticated caller.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// Claims are the JWT claims issued to an account. The subject is the user id.
type Claims struct {
	Name     string `json:"name,omitempty"`
	Timezone string `json:"tz,omitempty"`
	jwt.RegisteredClaims
}

type contextKey int

const accountKey contextKey = iota

// WithAccount returns a copy of ctx carrying a.
func WithAccount(ctx context.Context, a *Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFromContext extracts the account from the request context.
func AccountFromContext(ctx context.Context) *Account {
	if a, ok := ctx.Value(accountKey).(*Account); ok {
		return a
	}
	return nil
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if a := AccountFromContext(ctx); a != nil {
		return a.ID
	}
	return ""
}

// Directory answers who the current user is.
type Directory struct{}

// CurrentUser returns the account on ctx, or domain.ErrUnauthorized.
func (Directory) CurrentUser(ctx context.Context) (*Account, error) {
	a := AccountFromContext(ctx)
	if a == nil || a.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return a, nil
}

// Verifier signs and checks HS256 account tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a Verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID valid for ttl. A zero ttl never expires.
func (v *Verifier) Issue(userID, name, timezone string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", domain.Invalid("user id is required")
	}
	now := v.now()
	claims := Claims{
		Name:     name,
		Timezone: timezone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns its account. Any failure wraps
// domain.ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (*Account, error) {
	if tokenString == "" {
		return nil, domain.ErrUnauthorized
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	return &Account{ID: claims.Subject, DisplayName: claims.Name, Timezone: claims.Timezone}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate verifies token and makes sure the account has a profile.
// A timezone claim that differs from the stored one replaces it.
func Authenticate(ctx context.Context, v *Verifier, repo store.ProfileStore, defaultTimezone, token string) (*Account, error) {
	a, err := v.Verify(token)
	if err != nil {
		return nil, err
	}
	if err := ensureProfile(ctx, repo, a, defaultTimezone); err != nil {
		return nil, err
	}
	return a, nil
}

func ensureProfile(ctx context.Context, repo store.ProfileStore, a *Account, defaultTimezone string) error {
	tz := a.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	if err := repo.EnsureProfile(ctx, &domain.Profile{ID: a.ID, DisplayName: a.DisplayName, Timezone: tz}); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	if a.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return nil
	}
	p, err := repo.GetProfile(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if p.Timezone != a.Timezone {
		if err := repo.SetTimezone(ctx, a.ID, a.Timezone); err != nil {
			return fmt.Errorf("update timezone: %w", err)
		}
	}
	return nil
}

// Middleware rejects requests without a valid bearer token and injects the
// account into the request context.
func Middleware(v *Verifier, repo store.ProfileStore, defaultTimezone string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			a, err := Authenticate(r.Context(), v, repo, defaultTimezone, token)
			if errors.Is(err, domain.ErrUnauthorized) {
				if token != "" {
					logger.Warn("Rejected token", "remote_ip", IPFromRequest(r), "error", err)
				}
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err != nil {
				logger.Error("Failed to initialize profile", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to initialize profile")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), a)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
