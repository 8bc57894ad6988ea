package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/metrics"
	"github.com/angelmondragon/omni-backend/pkg/retry"
)

const userPath = "/auth/v1/user"

var errProviderUnavailable = errors.New("identity provider unavailable")

// RemoteVerifierParams groups dependencies for the remote verifier.
type RemoteVerifierParams struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	Retry      retry.Policy
	Metrics    *metrics.ProviderMetrics
	HTTPClient *http.Client
}

// RemoteVerifier asks the identity provider to resolve the token's user.
type RemoteVerifier struct {
	baseURL    string
	serviceKey string
	timeout    time.Duration
	retry      retry.Policy
	metrics    *metrics.ProviderMetrics
	httpClient *http.Client
}

func NewRemoteVerifier(params RemoteVerifierParams) *RemoteVerifier {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := params.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteVerifier{
		baseURL:    strings.TrimRight(strings.TrimSpace(params.BaseURL), "/"),
		serviceKey: strings.TrimSpace(params.ServiceKey),
		timeout:    timeout,
		retry:      params.Retry,
		metrics:    params.Metrics,
		httpClient: client,
	}
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// rejectedError marks a definitive "token is not valid" answer.
type rejectedError struct {
	status int
}

func (e rejectedError) Error() string {
	return fmt.Sprintf("identity provider rejected token: %d", e.status)
}

func (v *RemoteVerifier) Verify(ctx context.Context, credential string) (*User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, missingCredential()
	}

	started := time.Now()
	var user *remoteUser
	err := retry.Do(ctx, v.retry, isTransient, func(ctx context.Context) error {
		var err error
		user, err = v.fetchUser(ctx, credential)
		return err
	})
	v.metrics.Observe(metrics.ProviderIdentity, "user.get", started, err)

	var rejected rejectedError
	switch {
	case errors.As(err, &rejected):
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case err != nil:
		return nil, pkgerrors.Upstream(err, "verify credential")
	}
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return &User{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

func (v *RemoteVerifier) fetchUser(ctx context.Context, credential string) (*remoteUser, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, v.baseURL+userPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if v.serviceKey != "" {
		req.Header.Set("apikey", v.serviceKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, rejectedError{status: resp.StatusCode}
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", errProviderUnavailable, resp.Status)
	case resp.StatusCode >= 400:
		return nil, rejectedError{status: resp.StatusCode}
	}

	var out remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("identity decode: %w", err)
	}
	return &out, nil
}

func isTransient(err error) bool {
	var rejected rejectedError
	if errors.As(err, &rejected) {
		return false
	}
	return true
}
