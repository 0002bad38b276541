package ops

import (
	"context"

	"github.com/hpungsan/hookah/internal/hookah"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Token string
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	History []hookah.HistoryItem `json:"history"`
}

// History returns the caller's history, newest first. It is not rate limited.
func (s *Service) History(ctx context.Context, input HistoryInput) (*HistoryOutput, error) {
	userID, err := s.authenticate(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	items, err := s.history.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []hookah.HistoryItem{}
	}
	return &HistoryOutput{History: items}, nil
}
