package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tablegate/tablegate/internal/model"
)

// JWTVerifier accepts HS256 tokens minted by an external identity provider.
// The subject claim becomes the actor; the gateway trusts nothing else from
// the token.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt verifier requires a secret")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Subject == model.AnonymousActor {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		Actor:         claims.Subject,
		Authenticated: true,
	}, nil
}
