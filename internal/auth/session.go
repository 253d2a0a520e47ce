// Package auth tracks whether a user is signed in and announces transitions.
//
// The bearer token lives in the local store's token slot. Tokens that parse
// as JWTs are additionally checked for expiry; opaque tokens count as valid
// until logout.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cartsync/internal/model"
)

// ErrTokenExpired is returned by Login for a JWT whose exp has passed.
var ErrTokenExpired = errors.New("token expired")

// TokenStore is the persistence the session needs. *localstore.Store satisfies it.
type TokenStore interface {
	AuthToken(ctx context.Context) string
	SaveAuthToken(ctx context.Context, token string)
	ClearAuthToken(ctx context.Context)
}

// Listener receives authentication transitions.
type Listener func(ctx context.Context, authenticated bool)

// Session is the process-wide authentication state.
type Session struct {
	store  TokenStore
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time // zero for opaque tokens
	last      bool      // last state announced; guarded by dispatchMu

	subMu     sync.Mutex
	listeners []Listener

	// dispatchMu is held across a whole fan-out so listeners observe
	// transitions in the order they happened.
	dispatchMu sync.Mutex
}

// NewSession loads any persisted token from store.
func NewSession(ctx context.Context, store TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		store:  store,
		logger: logger.With("component", "auth"),
		now:    time.Now,
	}
	if token := store.AuthToken(ctx); token != "" {
		s.token = token
		s.expiresAt = expiry(token)
	}
	s.last = s.IsAuthenticated()
	return s
}

// Token returns the current bearer token, or "" when signed out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return ""
	}
	return s.token
}

// IsAuthenticated reports whether a usable token is present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

// Login stores token and notifies listeners if the user was signed out.
func (s *Session) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.NewValidationError("token", "must not be empty")
	}
	exp := expiry(token)
	if !exp.IsZero() && !exp.After(s.now()) {
		return ErrTokenExpired
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = exp
	s.mu.Unlock()

	s.store.SaveAuthToken(ctx, token)
	s.logger.Info("user signed in")
	s.Check(ctx)
	return nil
}

// Logout drops the token and notifies listeners if the user was signed in.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.store.ClearAuthToken(ctx)
	s.logger.Info("user signed out")
	s.Check(ctx)
}

// Subscribe registers fn for future transitions. Listeners run synchronously
// in registration order on the goroutine that caused the transition, one
// transition at a time. A listener must not call Login, Logout or Check.
func (s *Session) Subscribe(fn Listener) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Check re-evaluates the session and announces a transition when the state
// differs from the last one announced, e.g. after a JWT expired.
func (s *Session) Check(ctx context.Context) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	current := s.IsAuthenticated()
	if current == s.last {
		return
	}
	s.last = current

	s.subMu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.subMu.Unlock()

	s.logger.Debug("authentication changed", "authenticated", current)
	for _, fn := range listeners {
		fn(ctx, current)
	}
}

func (s *Session) validLocked() bool {
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.expiresAt.After(s.now())
}

// expiry returns the exp claim of a JWT-shaped token, or zero.
// Signatures are not verified here; the backend is the authority.
func expiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
