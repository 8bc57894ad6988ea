package checkout

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/omni-backend/internal/billing"
	"github.com/angelmondragon/omni-backend/internal/entitlements"
	"github.com/angelmondragon/omni-backend/internal/identity"
	"github.com/angelmondragon/omni-backend/pkg/catalog"
	"github.com/angelmondragon/omni-backend/pkg/config"
	"github.com/angelmondragon/omni-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/omni-backend/pkg/redis"
)

type stubOracle struct {
	created  *billing.CheckoutRequest
	sessions map[string]*billing.CheckoutSession
}

func (s *stubOracle) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	s.created = &req
	return &billing.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.test/cs_new", Status: billing.SessionStatusOpen}, nil
}

func (s *stubOracle) GetCheckoutSession(_ context.Context, id string) (*billing.CheckoutSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	return session, nil
}

func (s *stubOracle) GetSubscriptionStatus(context.Context, string) (*billing.SubscriptionStatus, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not used")
}

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID, productName string) error {
	r.calls = append(r.calls, userID+":"+productName)
	return nil
}

func completeSession(id, userID, subID string) *billing.CheckoutSession {
	return &billing.CheckoutSession{ID: id, Status: billing.SessionStatusComplete, ClientReferenceID: userID, SubscriptionID: subID}
}

type fixture struct {
	svc         *Service
	oracle      *stubOracle
	repo        *entitlements.Repository
	invalidator *recordingInvalidator
}

func newFixture(t *testing.T, requireState bool) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	oracle := &stubOracle{sessions: map[string]*billing.CheckoutSession{}}
	repo := entitlements.NewRepository(dbtest.Open(t))
	invalidator := &recordingInvalidator{}
	svc, err := NewService(ServiceParams{
		Config: config.CheckoutConfig{
			StateSecret:  "state-secret",
			StateTTL:     time.Hour,
			TrialDays:    7,
			RequireState: requireState,
		},
		App:          config.AppConfig{Host: "https://omni.test/"},
		Catalog:      catalog.Default(),
		Billing:      oracle,
		Entitlements: repo,
		Nonces:       NewRedisNonceStore(pkgredis.NewFromRedis(raw)),
		Invalidator:  invalidator,
	})
	require.NoError(t, err)
	return fixture{svc: svc, oracle: oracle, repo: repo, invalidator: invalidator}
}

// initiate returns the state token embedded in the success URL.
func initiate(t *testing.T, f fixture, userID string) string {
	t.Helper()
	redirect, err := f.svc.Initiate(context.Background(), InitiateInput{UserID: userID, ProductName: "writer"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_new", redirect)

	success := f.oracle.created.SuccessURL
	require.True(t, strings.HasPrefix(success, "https://omni.test/complete-purchase?session_id={CHECKOUT_SESSION_ID}&"))
	parsed, err := url.Parse(strings.Replace(success, "{CHECKOUT_SESSION_ID}", "cs_x", 1))
	require.NoError(t, err)
	assert.Equal(t, userID, parsed.Query().Get("user_id"))
	assert.Equal(t, "writer", parsed.Query().Get("product_name"))
	return parsed.Query().Get("state")
}

func TestInitiateBuildsTrialSubscriptionCheckout(t *testing.T) {
	f := newFixture(t, true)
	state := initiate(t, f, "u1")
	assert.NotEmpty(t, state)

	req := f.oracle.created
	assert.Equal(t, "price_1R9UWWFCUaUjKa7SqpbwYLF3", req.PriceID)
	assert.EqualValues(t, 7, req.TrialDays)
	assert.Equal(t, "https://omni.test/", req.CancelURL)
}

func TestInitiateRejectsUnknownProduct(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Initiate(context.Background(), InitiateInput{UserID: "u1", ProductName: "reader"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Nil(t, f.oracle.created)
}

func TestCompleteTwiceKeepsOneRowWithLatestReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.oracle.sessions["cs_1"] = completeSession("cs_1", "u1", "sub_1")
	f.oracle.sessions["cs_2"] = completeSession("cs_2", "u1", "sub_2")

	_, err := f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer"})
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer"})
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_2", ProductName: "writer"})
	require.NoError(t, err)

	row, err := f.repo.Find(ctx, "u1", "writer")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "sub_2", row.StripeSubscriptionID)

	rows, err := f.repo.ListBySubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Len(t, f.invalidator.calls, 3)
}

func TestCompleteWithStateAcceptsReplayOfSameSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	state := initiate(t, f, "u1")
	f.oracle.sessions["cs_1"] = completeSession("cs_1", "u1", "sub_1")
	f.oracle.sessions["cs_2"] = completeSession("cs_2", "u1", "sub_2")

	input := CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer", State: state}
	_, err := f.svc.Complete(ctx, input)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, input)
	require.NoError(t, err)

	input.SessionID = "cs_2"
	_, err = f.svc.Complete(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	row, err := f.repo.Find(ctx, "u1", "writer")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", row.StripeSubscriptionID)
}

type recordingNonces struct {
	ttls []time.Duration
}

func (r *recordingNonces) Claim(_ context.Context, _, _ string, ttl time.Duration) (bool, error) {
	r.ttls = append(r.ttls, ttl)
	return true, nil
}

func TestCompleteNonceTTLFollowsServiceClock(t *testing.T) {
	ctx := context.Background()
	clock := time.Now().Add(-30 * time.Minute)
	oracle := &stubOracle{sessions: map[string]*billing.CheckoutSession{
		"cs_1": completeSession("cs_1", "u1", "sub_1"),
	}}
	nonces := &recordingNonces{}
	svc, err := NewService(ServiceParams{
		Config: config.CheckoutConfig{
			StateSecret:  "state-secret",
			StateTTL:     time.Hour,
			RequireState: true,
		},
		App:          config.AppConfig{Host: "https://omni.test/"},
		Catalog:      catalog.Default(),
		Billing:      oracle,
		Entitlements: entitlements.NewRepository(dbtest.Open(t)),
		Nonces:       nonces,
		Now:          func() time.Time { return clock },
	})
	require.NoError(t, err)

	state := initiate(t, fixture{svc: svc, oracle: oracle}, "u1")
	_, err = svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer", State: state})
	require.NoError(t, err)

	require.Len(t, nonces.ttls, 1)
	assert.InDelta(t, time.Hour.Seconds(), nonces.ttls[0].Seconds(), 2)
}

func TestCompleteRejectsForeignOrForgedCorrelation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	state := initiate(t, f, "u1")
	f.oracle.sessions["cs_1"] = completeSession("cs_1", "u1", "sub_1")
	f.oracle.sessions["cs_other"] = completeSession("cs_other", "u2", "sub_9")

	_, err := f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "missing state")

	_, err = f.svc.Complete(ctx, CompleteInput{UserID: "u2", SessionID: "cs_1", ProductName: "writer", State: state})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "state for another user")

	_, err = f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_other", ProductName: "writer", State: state})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "session for another user")

	_, err = f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer", State: state, Caller: &identity.User{ID: "u2"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "caller mismatch")

	row, err := f.repo.Find(ctx, "u1", "writer")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCompleteRequiresFinishedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	state := initiate(t, f, "u1")
	f.oracle.sessions["cs_open"] = &billing.CheckoutSession{ID: "cs_open", Status: billing.SessionStatusOpen, ClientReferenceID: "u1"}

	_, err := f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_open", ProductName: "writer", State: state})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	// The nonce is not burned by a failed verification.
	f.oracle.sessions["cs_1"] = completeSession("cs_1", "u1", "sub_1")
	_, err = f.svc.Complete(ctx, CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "writer", State: state})
	require.NoError(t, err)
}

func TestCompleteSurfacesLookupFailures(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Complete(context.Background(), CompleteInput{UserID: "u1", SessionID: "cs_missing", ProductName: "writer"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Complete(context.Background(), CompleteInput{UserID: "u1", SessionID: "cs_1", ProductName: "reader"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresSecretWhenStateRequired(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:       config.CheckoutConfig{RequireState: true},
		Catalog:      catalog.Default(),
		Billing:      &stubOracle{},
		Entitlements: entitlements.NewRepository(dbtest.Open(t)),
	})
	assert.Error(t, err)
}
