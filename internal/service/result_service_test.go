package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

type fakeArchive struct {
	results   map[string]*model.Result
	events    map[string][]model.ProctorEvent
	lastLimit int
}

func (f *fakeArchive) GetBySession(_ context.Context, sessionID, userID string) (*model.Result, error) {
	r, ok := f.results[sessionID]
	if !ok || r.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeArchive) ListByUser(_ context.Context, userID string, limit int) ([]repository.ResultSummary, error) {
	f.lastLimit = limit
	var out []repository.ResultSummary
	for id, r := range f.results {
		if r.UserID == userID {
			out = append(out, repository.ResultSummary{SessionID: id, TestID: r.TestID})
		}
	}
	return out, nil
}

func (f *fakeArchive) ListBySession(_ context.Context, sessionID string) ([]model.ProctorEvent, error) {
	return f.events[sessionID], nil
}

func newArchive() *fakeArchive {
	return &fakeArchive{
		results: map[string]*model.Result{
			"s1": {SessionID: "s1", UserID: "u1", TestID: "acme-core"},
		},
		events: map[string][]model.ProctorEvent{
			"s1": {{SessionID: "s1", Type: model.ViolationTabSwitch, Warned: true}},
		},
	}
}

func TestResultServiceHistory(t *testing.T) {
	a := newArchive()
	svc := NewResultService(a, a)

	list, err := svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, maxHistory, a.lastLimit)

	list, err = svc.History(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Equal(t, 10, a.lastLimit)
}

func TestResultServiceEnforcesOwnership(t *testing.T) {
	a := newArchive()
	svc := NewResultService(a, a)

	res, err := svc.Get(context.Background(), "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "acme-core", res.TestID)

	_, err = svc.Get(context.Background(), "s1", "u2")
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = svc.Events(context.Background(), "s1", "u2")
	assert.ErrorIs(t, err, ErrResultNotFound)

	events, err := svc.Events(context.Background(), "s1", "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ViolationTabSwitch, events[0].Type)
}
