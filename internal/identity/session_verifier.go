package identity

import (
	"context"

	"github.com/tablegate/tablegate/internal/model"
)

// SessionStore is the slice of the ledger the verifier needs.
type SessionStore interface {
	SessionByTokenHash(ctx context.Context, hash string) (*model.Session, error)
}

// AccountStore resolves the session's account.
type AccountStore interface {
	ByID(ctx context.Context, id uint) (*model.User, error)
}

// SessionVerifier resolves tokens issued by the login endpoint: the token's
// hash must match an active session whose account still exists and is
// active. Any lookup failure rejects the credential; the caller learns
// nothing beyond that.
type SessionVerifier struct {
	sessions SessionStore
	users    AccountStore
}

func NewSessionVerifier(sessions SessionStore, users AccountStore) *SessionVerifier {
	return &SessionVerifier{sessions: sessions, users: users}
}

func (v *SessionVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	sess, err := v.sessions.SessionByTokenHash(ctx, HashToken(token))
	if err != nil || sess == nil {
		return nil, ErrInvalidToken
	}
	user, err := v.users.ByID(ctx, sess.UserID)
	if err != nil || user == nil || !user.Active {
		return nil, ErrInvalidToken
	}
	return &model.Identity{
		Actor:         user.Username,
		UserID:        user.ID,
		Authenticated: true,
	}, nil
}
