package suggest

import (
	"context"
	"strings"

	"github.com/angelmondragon/omni-backend/internal/items"
	pkgerrors "github.com/angelmondragon/omni-backend/pkg/errors"
)

type itemStore interface {
	Get(ctx context.Context, userID, itemID string, p items.Projection) (*items.Item, error)
	SetContent(ctx context.Context, userID, itemID, content string) error
}

// Input is the text typed so far.
type Input struct {
	Content     string `json:"content"`
	SaveContent bool   `json:"save_content"`
}

// Result carries the predicted continuation.
type Result struct {
	Prediction string `json:"prediction"`
}

// Service produces completions for an item the caller owns.
type Service struct {
	items     itemStore
	completer Completer
}

func NewService(itemSvc itemStore, completer Completer) (*Service, error) {
	if itemSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "item service required")
	}
	if completer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "completer required")
	}
	return &Service{items: itemSvc, completer: completer}, nil
}

// Suggest checks the item exists, asks the completer, optionally saves the
// input as the item content and returns the trimmed prediction.
func (s *Service) Suggest(ctx context.Context, userID, itemID string, input Input) (*Result, error) {
	if _, err := s.items.Get(ctx, userID, itemID, items.Projection{}); err != nil {
		return nil, err
	}

	prediction, err := s.completer.Complete(ctx, input.Content)
	if err != nil {
		return nil, err
	}

	if input.SaveContent {
		if err := s.items.SetContent(ctx, userID, itemID, input.Content); err != nil {
			return nil, err
		}
	}
	return &Result{Prediction: TrimPrediction(input.Content, prediction)}, nil
}

// TrimPrediction drops one leading space from the prediction when the input
// already ends with a space.
func TrimPrediction(input, prediction string) string {
	if strings.HasSuffix(input, " ") && strings.HasPrefix(prediction, " ") {
		return prediction[1:]
	}
	return prediction
}
