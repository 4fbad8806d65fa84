// Package identity is the boundary with the credential-verification
// collaborator. The rest of the gateway consumes only the verified
// model.Identity a Verifier returns; it never parses raw credentials.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/tablegate/tablegate/internal/model"
)

// ErrInvalidToken covers every verification failure. Callers get no detail
// about why a credential was rejected.
var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier turns a bearer credential into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// NewToken returns a fresh opaque session credential.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the one-way derivation stored in place of the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
