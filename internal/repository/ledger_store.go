package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tablegate/tablegate/internal/model"
)

// ErrSessionNotFound is returned when no session matches a token hash.
var ErrSessionNotFound = errors.New("session not found")

// LedgerStore persists login attempts and sessions. Both tables are
// append-only from the application's point of view; sessions may be removed
// on logout or by an external TTL sweep, never edited.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) InsertAttempt(ctx context.Context, attempt *model.LoginAttempt) error {
	return s.db.WithContext(ctx).Create(attempt).Error
}

func (s *LedgerStore) ListAttempts(ctx context.Context, username string, limit int) ([]*model.LoginAttempt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Model(&model.LoginAttempt{}).Order("created_at DESC").Limit(limit)
	if username != "" {
		q = q.Where("username = ?", username)
	}
	var attempts []*model.LoginAttempt
	if err := q.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// CountFailuresSince counts failed attempts in the window for either the
// username or the source address; the lockout policy treats both as signals.
func (s *LedgerStore) CountFailuresSince(ctx context.Context, username, ip string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.LoginAttempt{}).
		Where("success = ? AND created_at >= ?", false, since).
		Where("username = ? OR ip_address = ?", username, ip).
		Count(&n).Error
	return n, err
}

func (s *LedgerStore) InsertSession(ctx context.Context, sess *model.Session) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

func (s *LedgerStore) SessionByTokenHash(ctx context.Context, hash string) (*model.Session, error) {
	var sess model.Session
	err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *LedgerStore) DeleteSessionByTokenHash(ctx context.Context, hash string) error {
	return s.db.WithContext(ctx).Where("token_hash = ?", hash).Delete(&model.Session{}).Error
}

func (s *LedgerStore) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var sessions []*model.Session
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
