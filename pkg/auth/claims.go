package auth

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the shape of access tokens issued by the identity
// provider. The subject carries the user id.
type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// StatePayload captures the data bound into a checkout state token.
type StatePayload struct {
	UserID      string
	ProductName string
	Nonce       string
}

// StateClaims represents the signed checkout correlation token.
type StateClaims struct {
	UserID      string `json:"user_id"`
	ProductName string `json:"product_name"`
	Nonce       string `json:"nonce"`
	jwt.RegisteredClaims
}
