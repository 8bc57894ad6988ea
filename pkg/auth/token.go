package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateIssuer = "omni-checkout"

var jwtSigningMethod = jwt.SigningMethodHS256

// BearerToken extracts the token from an Authorization header value. The
// scheme is optional.
func BearerToken(header string) string {
	token := strings.TrimSpace(header)
	if strings.EqualFold(token, "bearer") {
		return ""
	}
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// ParseIdentityToken validates an identity provider access token.
func ParseIdentityToken(secret, audience, tokenString string) (*IdentityClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, hmacKey(secret), opts...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	return claims, nil
}

// MintIdentityToken signs identity claims. Used by tests and local tooling
// that stand in for the identity provider.
func MintIdentityToken(secret, audience, userID string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	claims := IdentityClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
}

// MintState issues a checkout state token. An empty nonce is generated.
func MintState(secret string, ttl time.Duration, now time.Time, payload StatePayload) (string, *StateClaims, error) {
	if secret == "" {
		return "", nil, fmt.Errorf("state secret is required")
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("state ttl must be positive")
	}
	if payload.UserID == "" || payload.ProductName == "" {
		return "", nil, fmt.Errorf("state requires user and product")
	}
	nonce := strings.TrimSpace(payload.Nonce)
	if nonce == "" {
		nonce = uuid.NewString()
	}

	claims := &StateClaims{
		UserID:      payload.UserID,
		ProductName: payload.ProductName,
		Nonce:       nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        nonce,
		},
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign state: %w", err)
	}
	return signed, claims, nil
}

// ParseState validates a checkout state token.
func ParseState(secret, tokenString string) (*StateClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("state secret is required")
	}
	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		hmacKey(secret),
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Nonce == "" {
		return nil, fmt.Errorf("state nonce is required")
	}
	return claims, nil
}

func hmacKey(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}
