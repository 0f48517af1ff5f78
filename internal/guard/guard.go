// Package guard gates uploads on a usable credential.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/pagescan/internal/identity"
)

// ErrNoSession is the single failure outcome: no session, an expired one, or a
// lookup error all collapse into it.
var ErrNoSession = errors.New("no valid session")

// Guard wraps the identity provider's current-session query
type Guard struct {
	provider identity.Provider
	now      func() time.Time
}

// New creates a guard. now defaults to time.Now.
func New(provider identity.Provider, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{provider: provider, now: now}
}

// RequireSession returns the current credential or ErrNoSession
func (g *Guard) RequireSession(ctx context.Context) (identity.Credential, error) {
	cred, err := g.provider.CurrentCredential(ctx)
	if err != nil {
		slog.Warn("Session lookup failed", "err", err)
		return identity.Credential{}, ErrNoSession
	}
	if cred == nil {
		return identity.Credential{}, ErrNoSession
	}
	if !cred.Valid(g.now()) {
		slog.Info("Session expired", "expires_at", cred.ExpiresAt)
		return identity.Credential{}, ErrNoSession
	}
	return *cred, nil
}
