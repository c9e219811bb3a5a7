package store

import (
	"context"

	"github.com/civicvoice/civicvoice/client-go/internal/models"
)

// Store persists the session's token pair and user identity across process
// restarts. Absence is reported through the ok return, not an error; errors
// are reserved for unexpected conditions (unreadable file, dead redis).
//
// The two logical keys, auth_tokens and auth_user, are fixed: an existing
// deployment's persisted sessions must survive a client upgrade.
type Store interface {
	SaveTokens(ctx context.Context, pair models.TokenPair) error
	LoadTokens(ctx context.Context) (models.TokenPair, bool, error)
	SaveUser(ctx context.Context, u *models.UserIdentity) error
	LoadUser(ctx context.Context) (*models.UserIdentity, bool, error)
	// Clear removes both keys. Clearing an already-empty store is a no-op.
	Clear(ctx context.Context) error
}

const (
	tokensKey = "auth_tokens"
	userKey   = "auth_user"
)
