package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	stripewebhook "github.com/angelmondragon/omni-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/omni-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/omni-backend/pkg/redis"
)

const testSigningSecret = "whsec_test"

func newGuard(t *testing.T) *stripewebhook.IdempotencyGuard {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	guard, err := stripewebhook.NewIdempotencyGuard(pkgredis.NewFromRedis(raw), time.Minute)
	require.NoError(t, err)
	return guard
}

func post(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookSuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newGuard(t), nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, service.calls)

	rec = post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, service.calls, "duplicate delivery must not be processed")
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newGuard(t), nil)

	rec := post(handler, payload, "t=1,v1=invalid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, service.calls)

	rec = post(handler, payload, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStripeWebhookReleasesFailedEvents(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeStripeWebhookService{err: errors.New("db down")}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newGuard(t), nil)

	rec := post(handler, payload, header)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	service.err = nil
	rec = post(handler, payload, header)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, service.calls, "released event is retried")
}

func TestStripeWebhookAcceptsOlderAPIVersion(t *testing.T) {
	payload, header := buildSignedEventWithVersion(t, "2024-06-20")
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSigningSecret}, newGuard(t), nil)

	rec := post(handler, payload, header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, service.calls)
}

func TestStripeWebhookLogsReleaseFailure(t *testing.T) {
	payload, header := buildSignedEvent(t)
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})
	service := &fakeStripeWebhookService{err: errors.New("db down")}
	guard := &failingReleaseGuard{err: errors.New("redis down")}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSigningSecret}, guard, logg)

	rec := post(handler, payload, header)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"evt_1"}, guard.released)
	assert.Contains(t, buf.String(), "stripe.event.release_failed")
	assert.Contains(t, buf.String(), "redis down")
}

func TestStripeWebhookRequiresSecret(t *testing.T) {
	payload, header := buildSignedEvent(t)
	handler := StripeWebhook(&fakeStripeWebhookService{}, &fakeSigningClient{}, nil, nil)
	assert.Equal(t, http.StatusInternalServerError, post(handler, payload, header).Code)
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	t.Helper()
	return buildSignedEventWithVersion(t, stripe.APIVersion)
}

func buildSignedEventWithVersion(t *testing.T, apiVersion string) ([]byte, string) {
	t.Helper()
	rawSession, err := json.Marshal(map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"mode":                "subscription",
		"status":              "complete",
		"client_reference_id": "u1",
		"subscription":        "sub_1",
	})
	require.NoError(t, err)
	event := &stripe.Event{
		ID:         "evt_1",
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: apiVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload, buildStripeSignatureHeader(payload, testSigningSecret, time.Now().Unix())
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeStripeWebhookService struct {
	calls int
	err   error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type failingReleaseGuard struct {
	err      error
	released []string
}

func (g *failingReleaseGuard) CheckAndMark(context.Context, string) (bool, error) {
	return false, nil
}

func (g *failingReleaseGuard) Release(_ context.Context, eventID string) error {
	g.released = append(g.released, eventID)
	return g.err
}
