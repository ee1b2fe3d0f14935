package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/forward"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/scheduler"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// SessionService creates exam sessions wired to a browser relay and hands
// them out to their owners.
type SessionService struct {
	catalog      catalog.Source
	store        store.Store
	forwarder    forward.Forwarder
	registry     *session.Registry
	opts         session.Options
	thresholds   proctor.Thresholds
	grantTimeout time.Duration
	log          zerolog.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(
	cat catalog.Source,
	st store.Store,
	fwd forward.Forwarder,
	registry *session.Registry,
	pc config.ProctorConfig,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		catalog:   cat,
		store:     st,
		forwarder: fwd,
		registry:  registry,
		opts:      session.OptionsFrom(pc),
		thresholds: proctor.Thresholds{
			DarkBrightness:    pc.DarkBrightness,
			BrightBrightness:  pc.BrightBrightness,
			MidLowBrightness:  pc.MidLowBrightness,
			MidHighBrightness: pc.MidHighBrightness,
			SkinRatio:         pc.SkinRatio,
			LowSkinRatio:      pc.LowSkinRatio,
			NoiseGain:         pc.NoiseGain,
		},
		grantTimeout: pc.MediaGrantTimeout,
		log:          logger.Component(log, "session_service"),
	}
}

// Create opens a session for userID and selects testID in it. The user's
// previous session, if any, is closed.
func (s *SessionService) Create(ctx context.Context, userID, testID string) (*session.Entry, error) {
	id := uuid.NewString()
	relay := proctor.NewRelay(s.grantTimeout)
	log := logger.Session(s.log, id, userID)

	ctrl := session.New(id, userID, session.Deps{
		Catalog:   s.catalog,
		Store:     s.store,
		Forwarder: s.forwarder,
		Sensor:    proctor.NewSensor(relay, relay, s.thresholds, log),
		Scheduler: scheduler.NewLoop(log),
		Log:       s.log,
	}, s.opts)

	if err := ctrl.SelectTest(ctx, testID); err != nil {
		ctrl.Close()
		return nil, err
	}

	entry := &session.Entry{Controller: ctrl, Relay: relay}
	s.registry.Add(entry)
	s.log.Info().Str("session_id", id).Str("user_id", userID).Str("test_id", testID).Msg("Session created")
	return entry, nil
}

// Get returns a session owned by userID.
func (s *SessionService) Get(id, userID string) (*session.Entry, error) {
	return s.registry.Get(id, userID)
}

// Leave abandons the exam, keeping its draft, and discards the session.
func (s *SessionService) Leave(id, userID string) error {
	entry, err := s.registry.Get(id, userID)
	if err != nil {
		return err
	}
	if err := entry.Controller.Leave(); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("Leave on closed session")
	}
	s.registry.Remove(id)
	return nil
}
