package service

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ErrResultNotFound is returned when no archived result matches.
var ErrResultNotFound = errors.New("result not found")

// ResultArchive reads archived results.
type ResultArchive interface {
	GetBySession(ctx context.Context, sessionID, userID string) (*model.Result, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]repository.ResultSummary, error)
}

// EventArchive reads archived proctoring events.
type EventArchive interface {
	ListBySession(ctx context.Context, sessionID string) ([]model.ProctorEvent, error)
}

// ResultService serves a candidate's archived results and their violation
// log once the session itself is gone.
type ResultService struct {
	results ResultArchive
	events  EventArchive
}

// NewResultService creates a new ResultService.
func NewResultService(results ResultArchive, events EventArchive) *ResultService {
	return &ResultService{results: results, events: events}
}

const maxHistory = 100

// History returns the user's latest results, newest first.
func (s *ResultService) History(ctx context.Context, userID string, limit int) ([]repository.ResultSummary, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	list, err := s.results.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []repository.ResultSummary{}
	}
	return list, nil
}

// Get returns the archived result of a session owned by userID.
func (s *ResultService) Get(ctx context.Context, sessionID, userID string) (*model.Result, error) {
	res, err := s.results.GetBySession(ctx, sessionID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	return res, err
}

// Events returns the archived violation log of a session owned by userID.
func (s *ResultService) Events(ctx context.Context, sessionID, userID string) ([]model.ProctorEvent, error) {
	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	events, err := s.events.ListBySession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrResultNotFound
	}
	if events == nil && err == nil {
		events = []model.ProctorEvent{}
	}
	return events, err
}
