package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Merged consults the built-in catalog first and falls back to the remote
// source for ids carrying the separator.
type Merged struct {
	static Source
	remote Source
	log    zerolog.Logger
}

// NewMerged combines sources. remote may be nil.
func NewMerged(static, remote Source, log zerolog.Logger) *Merged {
	return &Merged{
		static: static,
		remote: remote,
		log:    log.With().Str("component", "catalog").Logger(),
	}
}

// List implements Source. A failing remote source degrades to the built-in
// listing.
func (m *Merged) List(ctx context.Context) ([]model.Company, error) {
	companies, err := m.static.List(ctx)
	if err != nil {
		return nil, err
	}
	if m.remote == nil {
		return companies, nil
	}

	remote, err := m.remote.List(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Remote catalog unavailable, serving built-in tests only")
		return companies, nil
	}

	index := make(map[string]int, len(companies))
	for i, c := range companies {
		index[c.ID] = i
	}
	for _, c := range remote {
		if i, ok := index[c.ID]; ok {
			companies[i].Tests = append(companies[i].Tests, c.Tests...)
			continue
		}
		index[c.ID] = len(companies)
		companies = append(companies, c)
	}
	return companies, nil
}

// Get implements Source.
func (m *Merged) Get(ctx context.Context, id string) (*model.Test, error) {
	t, err := m.static.Get(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTestNotFound) || m.remote == nil || !IsRemoteID(id) {
		return nil, err
	}
	return m.remote.Get(ctx, id)
}
