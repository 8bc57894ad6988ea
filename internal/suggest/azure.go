package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/omni-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
	"github.com/angelmondragon/omni-backend/pkg/metrics"
)

const systemPrompt = `You are providing an auto complete service to assist users in writing any kind of document.
All "user role" content passed to you will be content they are writing.
You should review content to understand:
- the topic and context of the document
- the users personal style and tone of writing
- the users intent for the document
and provide a completion that is consistent with the above.

Notes:
- The goal of this application is to assist users in writing documents, not to generate new content.
  - Therefore, limit the length of your suggestion to finishing the current sentence, or suggesting the next.
  - In cases where your confidence is extremely high (repeated forms, common references, etc) you may suggest a few sentences.
- The purpose here is to anticipate what the user will write next, not suggest a direction or enforce a style.
  - So put high importance on matching the users style and tone.`

// Completer turns the user's text into a predicted continuation.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// AzureCompleter calls an Azure OpenAI chat-completions deployment and asks
// for a JSON object with a single "prediction" field.
type AzureCompleter struct {
	endpoint    string
	apiKey      string
	deployment  string
	apiVersion  string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	metrics     *metrics.ProviderMetrics
	httpClient  *http.Client
}

func NewAzureCompleter(cfg config.CompletionConfig, providerMetrics *metrics.ProviderMetrics) *AzureCompleter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AzureCompleter{
		endpoint:    strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		deployment:  strings.TrimSpace(cfg.Deployment),
		apiVersion:  strings.TrimSpace(cfg.APIVersion),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		metrics:     providerMetrics,
		httpClient:  &http.Client{},
	}
}

func (c *AzureCompleter) Complete(ctx context.Context, text string) (string, error) {
	started := time.Now()
	prediction, err := c.complete(ctx, text)
	c.metrics.Observe(metrics.ProviderCompletion, "chat.completions", started, err)
	if err != nil {
		return "", pkgerrors.Upstream(err, "completion request failed")
	}
	return prediction, nil
}

func (c *AzureCompleter) complete(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: predictionFormat,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(c.deployment), url.QueryEscape(c.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("completion api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("completion api error: %s", resp.Status)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("completion decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from completion api")
	}
	var out predictionPayload
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &out); err != nil {
		return "", fmt.Errorf("completion payload: %w", err)
	}
	return out.Prediction, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type predictionPayload struct {
	Prediction string `json:"prediction"`
}

var predictionFormat = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "autocomplete_response",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prediction": map[string]any{
					"type":        "string",
					"description": "The predicted completion for the input text.",
				},
			},
			"required":             []string{"prediction"},
			"additionalProperties": false,
		},
	},
}
