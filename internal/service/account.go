package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tablegate/tablegate/internal/identity"
	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/apperrors"
	"github.com/tablegate/tablegate/internal/repository"
)

// AccountService handles login and logout against the minimal account
// store. Every attempt, whatever its outcome, goes through the ledger
// before the caller sees a result.
type AccountService struct {
	users  *repository.UserStore
	ledger *LedgerService
}

func NewAccountService(users *repository.UserStore, ledger *LedgerService) *AccountService {
	return &AccountService{users: users, ledger: ledger}
}

// Login verifies credentials and opens a session. The returned token is
// shown to the caller once; only its hash is stored.
func (s *AccountService) Login(ctx context.Context, username, password, ip, userAgent string) (string, *model.Session, error) {
	fail := func(reason string, err error) (string, *model.Session, error) {
		if ledgerErr := s.ledger.RecordAttempt(ctx, username, false, ip, userAgent, reason); ledgerErr != nil {
			// The ledger must not drop attempts; with it unavailable the
			// login fails outright.
			return "", nil, apperrors.New(apperrors.ErrStorageFailure, "login unavailable", ledgerErr)
		}
		return "", nil, err
	}

	if username == "" || password == "" {
		return fail("missing credentials", apperrors.NewInvalidRequest("username and password are required"))
	}

	if s.ledger.LockedOut(ctx, username, ip) {
		return fail("locked out", apperrors.New(apperrors.ErrRateLimited, "too many failed attempts", nil))
	}

	user, err := s.users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// The caller cannot distinguish a missing account from a bad
			// password; the ledger keeps the real reason.
			return fail("unknown user", apperrors.NewAuthRequired("invalid credentials"))
		}
		return fail("account lookup failed", apperrors.New(apperrors.ErrStorageFailure, "login unavailable", err))
	}
	if !user.Active {
		return fail("account disabled", apperrors.NewAuthRequired("invalid credentials"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return fail("bad password", apperrors.NewAuthRequired("invalid credentials"))
	}

	if err := s.ledger.RecordAttempt(ctx, username, true, ip, userAgent, ""); err != nil {
		return "", nil, apperrors.New(apperrors.ErrStorageFailure, "login unavailable", err)
	}

	token, err := identity.NewToken()
	if err != nil {
		return "", nil, apperrors.New(apperrors.ErrInternal, "token generation failed", err)
	}
	sess, err := s.ledger.RecordSession(ctx, user.ID, identity.HashToken(token), ip, userAgent)
	if err != nil {
		return "", nil, apperrors.New(apperrors.ErrStorageFailure, "login unavailable", err)
	}
	return token, sess, nil
}

// Logout revokes the session backing a raw token. Revoking an unknown
// token is not an error.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.ledger.RevokeSession(ctx, identity.HashToken(token))
}

// Bootstrap seeds the configured initial account if it does not exist.
func (s *AccountService) Bootstrap(ctx context.Context, username, password string) (*model.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.users.Ensure(ctx, username, hash)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
