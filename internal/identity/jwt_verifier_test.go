package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier("topsecret", "tablegate")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token := signToken(t, "topsecret", jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "tablegate",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Actor != "alice" || !id.Authenticated {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestJWTVerifierRejections(t *testing.T) {
	v, err := NewJWTVerifier("topsecret", "tablegate")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"wrong secret": signToken(t, "other", jwt.RegisteredClaims{
			Subject: "alice", Issuer: "tablegate", ExpiresAt: future,
		}),
		"expired": signToken(t, "topsecret", jwt.RegisteredClaims{
			Subject: "alice", Issuer: "tablegate",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
		"no expiry": signToken(t, "topsecret", jwt.RegisteredClaims{
			Subject: "alice", Issuer: "tablegate",
		}),
		"wrong issuer": signToken(t, "topsecret", jwt.RegisteredClaims{
			Subject: "alice", Issuer: "other", ExpiresAt: future,
		}),
		"empty subject": signToken(t, "topsecret", jwt.RegisteredClaims{
			Issuer: "tablegate", ExpiresAt: future,
		}),
		"anonymous subject": signToken(t, "topsecret", jwt.RegisteredClaims{
			Subject: "anonymous", Issuer: "tablegate", ExpiresAt: future,
		}),
		"garbage": "not-a-jwt",
		"empty":   "",
	}
	for name, token := range cases {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier("", ""); err == nil {
		t.Fatalf("expected error without secret")
	}
}
