package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/omni-backend/internal/items"
	"github.com/angelmondragon/omni-backend/pkg/config"
	"github.com/angelmondragon/omni-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
)

type stubCompleter struct {
	prediction string
	err        error
	seen       []string
}

func (s *stubCompleter) Complete(_ context.Context, text string) (string, error) {
	s.seen = append(s.seen, text)
	return s.prediction, s.err
}

func newItems(t *testing.T) *items.Service {
	t.Helper()
	svc, err := items.NewService(items.NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestTrimPrediction(t *testing.T) {
	assert.Equal(t, "stormy night", TrimPrediction("It was a dark and ", " stormy night"))
	assert.Equal(t, " stormy night", TrimPrediction("It was a dark and", " stormy night"))
	assert.Equal(t, "stormy night", TrimPrediction("It was a dark and ", "stormy night"))
	assert.Equal(t, " two", TrimPrediction("one ", "  two"))
	assert.Equal(t, "", TrimPrediction(" ", ""))
}

func TestSuggestTrimsAndSavesContent(t *testing.T) {
	ctx := context.Background()
	itemSvc := newItems(t)
	item, err := itemSvc.Create(ctx, items.CreateInput{UserID: "u1", ProductName: "writer"})
	require.NoError(t, err)

	completer := &stubCompleter{prediction: " stormy night"}
	svc, err := NewService(itemSvc, completer)
	require.NoError(t, err)

	out, err := svc.Suggest(ctx, "u1", item.ItemID, Input{Content: "It was a dark and ", SaveContent: true})
	require.NoError(t, err)
	assert.Equal(t, "stormy night", out.Prediction)
	assert.Equal(t, []string{"It was a dark and "}, completer.seen)

	got, err := itemSvc.Get(ctx, "u1", item.ItemID, items.Full)
	require.NoError(t, err)
	assert.Equal(t, "It was a dark and ", *got.ItemContent)
}

func TestSuggestWithoutSaveLeavesContent(t *testing.T) {
	ctx := context.Background()
	itemSvc := newItems(t)
	item, err := itemSvc.Create(ctx, items.CreateInput{UserID: "u1", ProductName: "writer", Content: "draft"})
	require.NoError(t, err)

	svc, err := NewService(itemSvc, &stubCompleter{prediction: "more"})
	require.NoError(t, err)
	_, err = svc.Suggest(ctx, "u1", item.ItemID, Input{Content: "draft plus"})
	require.NoError(t, err)

	got, err := itemSvc.Get(ctx, "u1", item.ItemID, items.Full)
	require.NoError(t, err)
	assert.Equal(t, "draft", *got.ItemContent)
}

func TestSuggestRequiresOwnedItem(t *testing.T) {
	ctx := context.Background()
	itemSvc := newItems(t)
	item, err := itemSvc.Create(ctx, items.CreateInput{UserID: "u1", ProductName: "writer"})
	require.NoError(t, err)

	completer := &stubCompleter{prediction: "x"}
	svc, err := NewService(itemSvc, completer)
	require.NoError(t, err)
	_, err = svc.Suggest(ctx, "u2", item.ItemID, Input{Content: "hello"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, completer.seen)
}

func TestSuggestDoesNotSaveWhenCompletionFails(t *testing.T) {
	ctx := context.Background()
	itemSvc := newItems(t)
	item, err := itemSvc.Create(ctx, items.CreateInput{UserID: "u1", ProductName: "writer", Content: "old"})
	require.NoError(t, err)

	svc, err := NewService(itemSvc, &stubCompleter{err: pkgerrors.New(pkgerrors.CodeDependency, "down")})
	require.NoError(t, err)
	_, err = svc.Suggest(ctx, "u1", item.ItemID, Input{Content: "new", SaveContent: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	got, err := itemSvc.Get(ctx, "u1", item.ItemID, items.Full)
	require.NoError(t, err)
	assert.Equal(t, "old", *got.ItemContent)
}

func TestAzureCompleterRequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o-mini/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-10-21", r.URL.Query().Get("api-version"))
		assert.Equal(t, "key", r.Header.Get("api-key"))

		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 100, body.MaxTokens)
		assert.InDelta(t, 0.7, body.Temperature, 1e-9)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
			assert.Equal(t, "It was a dark and ", body.Messages[1].Content)
		}
		assert.Equal(t, "json_schema", body.ResponseFormat["type"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"prediction\":\" stormy night\"}"}}]}`))
	}))
	defer server.Close()

	completer := NewAzureCompleter(config.CompletionConfig{
		Endpoint:    server.URL + "/",
		APIKey:      "key",
		Deployment:  "gpt-4o-mini",
		APIVersion:  "2024-10-21",
		MaxTokens:   100,
		Temperature: 0.7,
	}, nil)
	out, err := completer.Complete(context.Background(), "It was a dark and ")
	require.NoError(t, err)
	assert.Equal(t, " stormy night", out)
}

func TestAzureCompleterErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer server.Close()

	completer := NewAzureCompleter(config.CompletionConfig{Endpoint: server.URL, Deployment: "d"}, nil)
	_, err := completer.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAzureCompleterTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	completer := NewAzureCompleter(config.CompletionConfig{Endpoint: server.URL, Deployment: "d"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := completer.Complete(ctx, "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTimeout))
}
