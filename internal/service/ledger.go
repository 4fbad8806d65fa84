package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/logger"
	"github.com/tablegate/tablegate/internal/pkg/metrics"
	"github.com/tablegate/tablegate/internal/repository"
)

// FailureCounter tracks failed logins per key inside a sliding window.
// Redis-backed in production, in-memory otherwise.
type FailureCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
}

// LedgerService owns the append-only record of authentication attempts and
// active sessions. An attempt is never silently dropped: if the ledger
// write fails the error propagates and the login fails with it.
type LedgerService struct {
	store     *repository.LedgerStore
	counter   FailureCounter
	window    time.Duration
	threshold int
}

func NewLedgerService(store *repository.LedgerStore, counter FailureCounter, window time.Duration, threshold int) *LedgerService {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if threshold <= 0 {
		threshold = 5
	}
	return &LedgerService{
		store:     store,
		counter:   counter,
		window:    window,
		threshold: threshold,
	}
}

// RecordAttempt writes one LoginAttempt, success or failure. failureReason
// is stored iff the attempt failed.
func (s *LedgerService) RecordAttempt(ctx context.Context, username string, success bool, ip, userAgent, failureReason string) error {
	attempt := &model.LoginAttempt{
		Username:  username,
		Success:   success,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if !success {
		reason := failureReason
		attempt.FailureReason = &reason
	}

	if err := s.store.InsertAttempt(ctx, attempt); err != nil {
		return err
	}

	result := "failure"
	if success {
		result = "success"
	}
	metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()

	if !success && s.counter != nil {
		for _, key := range []string{"user:" + username, "ip:" + ip} {
			if _, err := s.counter.Incr(ctx, key, s.window); err != nil {
				logger.Warn("failure counter update failed", "key", key, "error", err.Error())
			}
		}
	}
	return nil
}

// LockedOut reports whether the username or source address crossed the
// failure threshold inside the window.
func (s *LedgerService) LockedOut(ctx context.Context, username, ip string) bool {
	if s.counter == nil {
		return false
	}
	for _, key := range []string{"user:" + username, "ip:" + ip} {
		n, err := s.counter.Count(ctx, key)
		if err != nil {
			logger.Warn("failure counter read failed", "key", key, "error", err.Error())
			continue
		}
		if n >= int64(s.threshold) {
			return true
		}
	}
	return false
}

// RecordSession stores a new session for a successful login. Only the token
// hash is persisted.
func (s *LedgerService) RecordSession(ctx context.Context, userID uint, tokenHash, ip, userAgent string) (*model.Session, error) {
	sess := &model.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: tokenHash,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *LedgerService) RevokeSession(ctx context.Context, tokenHash string) error {
	return s.store.DeleteSessionByTokenHash(ctx, tokenHash)
}

func (s *LedgerService) Attempts(ctx context.Context, username string, limit int) ([]*model.LoginAttempt, error) {
	return s.store.ListAttempts(ctx, username, limit)
}

func (s *LedgerService) Sessions(ctx context.Context, limit int) ([]*model.Session, error) {
	return s.store.ListSessions(ctx, limit)
}

// FailuresSince is the durable (SQL) counterpart of the windowed counters,
// used by monitoring reads.
func (s *LedgerService) FailuresSince(ctx context.Context, username, ip string, since time.Time) (int64, error) {
	return s.store.CountFailuresSince(ctx, username, ip, since)
}
