package identity

import (
	"context"
	"strings"

	pkgauth "github.com/angelmondragon/omni-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
)

// JWTVerifier validates provider-issued access tokens locally with the
// project's shared JWT secret.
type JWTVerifier struct {
	secret   string
	audience string
}

func NewJWTVerifier(secret, audience string) *JWTVerifier {
	return &JWTVerifier{secret: secret, audience: strings.TrimSpace(audience)}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (*User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, missingCredential()
	}
	claims, err := pkgauth.ParseIdentityToken(v.secret, v.audience, credential)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
