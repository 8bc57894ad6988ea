package identity

import (
	"context"
	"strings"

	"github.com/angelmondragon/omni-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/metrics"
)

// User is the authenticated principal resolved from a credential.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Gateway verifies bearer credentials against the identity provider.
type Gateway interface {
	Verify(ctx context.Context, credential string) (*User, error)
}

// New picks the verifier for the configured identity mode.
func New(cfg config.IdentityConfig, providerMetrics *metrics.ProviderMetrics) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case config.IdentityModeJWT, "":
		return NewJWTVerifier(cfg.JWTSecret, cfg.Audience), nil
	case config.IdentityModeRemote:
		return NewRemoteVerifier(RemoteVerifierParams{
			BaseURL:    cfg.URL,
			ServiceKey: cfg.ServiceKey,
			Timeout:    cfg.Timeout,
			Metrics:    providerMetrics,
		}), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown identity mode "+cfg.Mode)
	}
}

func missingCredential() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
}
