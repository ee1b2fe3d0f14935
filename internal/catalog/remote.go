package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// TestRepository is the persistence Remote reads from.
type TestRepository interface {
	ListCompanies(ctx context.Context) ([]model.Company, error)
	GetTest(ctx context.Context, id string) (*model.Test, error)
}

// Remote serves Postgres-defined tests through a Redis payload cache.
type Remote struct {
	repo TestRepository
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewRemote creates a Remote source. rdb may be nil to disable caching.
func NewRemote(repo TestRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Remote {
	return &Remote{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "remote_catalog").Logger(),
	}
}

// List implements Source.
func (r *Remote) List(ctx context.Context) ([]model.Company, error) {
	key := config.CacheKey.RemoteCatalogKey()
	var companies []model.Company
	if r.cached(ctx, key, &companies) {
		return companies, nil
	}

	companies, err := r.repo.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote companies: %w", err)
	}
	companies = metadata(companies)
	r.store(ctx, key, companies)
	return companies, nil
}

// Get implements Source.
func (r *Remote) Get(ctx context.Context, id string) (*model.Test, error) {
	key := config.CacheKey.TestPayloadKey(id)
	var t model.Test
	if r.cached(ctx, key, &t) {
		return &t, nil
	}

	got, err := r.repo.GetTest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTestNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load remote test %s: %w", id, err)
	}
	if err := Validate(got); err != nil {
		return nil, fmt.Errorf("remote test %s is malformed: %w", id, err)
	}
	got.Remote = true
	r.store(ctx, key, got)
	return got, nil
}

// Invalidate drops cached payloads after the tests were rewritten.
func (r *Remote) Invalidate(ctx context.Context, ids ...string) error {
	if r.rdb == nil {
		return nil
	}
	keys := []string{config.CacheKey.RemoteCatalogKey()}
	for _, id := range ids {
		keys = append(keys, config.CacheKey.TestPayloadKey(id))
	}
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *Remote) cached(ctx context.Context, key string, dst any) bool {
	if r.rdb == nil {
		return false
	}
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt cache entry")
		return false
	}
	return true
}

func (r *Remote) store(ctx context.Context, key string, v any) {
	if r.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
