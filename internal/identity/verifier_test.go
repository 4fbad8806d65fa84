package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/tablegate/tablegate/internal/model"
)

func TestNewTokenIsUniqueAndOpaque(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if a == b {
		t.Fatalf("tokens must be unique")
	}
	if len(a) != 64 {
		t.Fatalf("expected 32 random bytes hex-encoded, got %d chars", len(a))
	}
}

func TestHashTokenIsStableAndOneWay(t *testing.T) {
	if HashToken("tok") != HashToken("tok") {
		t.Fatalf("hash must be deterministic")
	}
	if HashToken("tok") == "tok" {
		t.Fatalf("hash must differ from input")
	}
	if HashToken("tok") == HashToken("tok2") {
		t.Fatalf("different tokens must hash differently")
	}
}

type fakeSessionStore struct {
	sessions map[string]*model.Session
	err      error
}

func (f *fakeSessionStore) SessionByTokenHash(_ context.Context, hash string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return sess, nil
}

type fakeAccountStore struct {
	users map[uint]*model.User
}

func (f *fakeAccountStore) ByID(_ context.Context, id uint) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return user, nil
}

func TestSessionVerifier(t *testing.T) {
	token, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	sessions := &fakeSessionStore{sessions: map[string]*model.Session{
		HashToken(token): {ID: "s-1", UserID: 7},
	}}
	users := &fakeAccountStore{users: map[uint]*model.User{
		7: {ID: 7, Username: "alice", Active: true},
	}}
	v := NewSessionVerifier(sessions, users)

	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Actor != "alice" || id.UserID != 7 || !id.Authenticated {
		t.Fatalf("unexpected identity %+v", id)
	}

	if _, err := v.Verify(context.Background(), "unknown-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown token must be invalid, got %v", err)
	}
	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token must be invalid, got %v", err)
	}
}

func TestSessionVerifierRejectsDisabledAccount(t *testing.T) {
	token, _ := NewToken()
	sessions := &fakeSessionStore{sessions: map[string]*model.Session{
		HashToken(token): {ID: "s-1", UserID: 7},
	}}
	users := &fakeAccountStore{users: map[uint]*model.User{
		7: {ID: 7, Username: "alice", Active: false},
	}}
	v := NewSessionVerifier(sessions, users)

	if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("disabled account must not verify, got %v", err)
	}
}

func TestSessionVerifierTreatsStoreFailureAsInvalid(t *testing.T) {
	sessions := &fakeSessionStore{err: errors.New("db down")}
	v := NewSessionVerifier(sessions, &fakeAccountStore{})

	if _, err := v.Verify(context.Background(), "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("store failure must reject the credential, got %v", err)
	}
}
