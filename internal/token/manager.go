package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is assumed when a provider does not state how long its token lives.
// Conservative on purpose: several providers invalidate tokens before the hour mark.
const DefaultTTL = 50 * time.Minute

const defaultSafetyMargin = 30 * time.Second

// Credential is a provider auth token and its validity window. Only the Manager
// writes credentials; everything else sees the token value alone.
type Credential struct {
	Provider  string
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthError means the provider rejected our credentials. It is not retried
// beyond the single 401 refresh; the caller decides whether to skip the provider.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

// Authenticator performs one provider's login call. Implementations live next to
// the provider adapter, since credential shapes differ per provider.
type Authenticator interface {
	Provider() string
	// Authenticate performs the login call and returns the fresh credential.
	// A zero ExpiresAt means the provider stated no TTL; the Manager applies DefaultTTL.
	Authenticate(ctx context.Context) (Credential, error)
}

// Manager owns every provider credential and its refresh lifecycle.
// Refreshes are single-flight per provider: concurrent callers for the same
// expired token share one authenticate call.
type Manager struct {
	mu     sync.Mutex
	creds  map[string]Credential
	auths  map[string]Authenticator
	group  singleflight.Group
	margin time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewManager(auths []Authenticator, log *zap.Logger) *Manager {
	m := &Manager{
		creds:  make(map[string]Credential),
		auths:  make(map[string]Authenticator, len(auths)),
		margin: defaultSafetyMargin,
		log:    log,
		now:    time.Now,
	}
	for _, a := range auths {
		m.auths[a.Provider()] = a
	}
	return m
}

// GetValidToken returns a cached token while it is still safely inside its
// validity window, refreshing otherwise.
func (m *Manager) GetValidToken(ctx context.Context, providerID string) (string, error) {
	m.mu.Lock()
	if c, ok := m.creds[providerID]; ok && m.now().Before(c.ExpiresAt.Add(-m.margin)) {
		m.mu.Unlock()
		return c.Token, nil
	}
	auth, ok := m.auths[providerID]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no authenticator registered for provider %q", providerID)
	}

	v, err, _ := m.group.Do(providerID, func() (any, error) {
		// Re-check under the lock: another flight may have refreshed between
		// our expiry check and joining the group.
		m.mu.Lock()
		if c, ok := m.creds[providerID]; ok && m.now().Before(c.ExpiresAt.Add(-m.margin)) {
			m.mu.Unlock()
			return c.Token, nil
		}
		m.mu.Unlock()

		cred, err := auth.Authenticate(ctx)
		if err != nil {
			return "", err
		}
		if cred.IssuedAt.IsZero() {
			cred.IssuedAt = m.now()
		}
		if cred.ExpiresAt.IsZero() {
			cred.ExpiresAt = cred.IssuedAt.Add(DefaultTTL)
		}
		cred.Provider = providerID

		m.mu.Lock()
		m.creds[providerID] = cred
		m.mu.Unlock()

		m.log.Info("provider token refreshed",
			zap.String("provider", providerID),
			zap.Time("expires_at", cred.ExpiresAt))
		return cred.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached credential so the next GetValidToken re-authenticates.
// Used by adapters after a mid-flight 401.
func (m *Manager) Invalidate(providerID string) {
	m.mu.Lock()
	delete(m.creds, providerID)
	m.mu.Unlock()
}
