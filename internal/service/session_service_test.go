package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/catalog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/forward"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/store"
)

func newSessionService(t *testing.T) (*SessionService, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(0, zerolog.Nop())
	t.Cleanup(func() { reg.Shutdown(context.Background()) })

	pc := config.DefaultProctor()
	pc.MediaGrantTimeout = 50 * time.Millisecond
	pc.RequireCamera = false
	svc := NewSessionService(catalog.NewStatic(catalog.BuiltIn()...), store.NewMemory(), forward.Nop{}, reg, pc, zerolog.Nop())
	return svc, reg
}

func firstTestID(t *testing.T) string {
	t.Helper()
	companies, err := catalog.NewStatic(catalog.BuiltIn()...).List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, companies)
	require.NotEmpty(t, companies[0].Tests)
	return companies[0].Tests[0].ID
}

func TestSessionServiceCreate(t *testing.T) {
	svc, reg := newSessionService(t)
	testID := firstTestID(t)

	entry, err := svc.Create(context.Background(), "u1", testID)
	require.NoError(t, err)
	require.NotNil(t, entry.Relay)
	assert.Equal(t, 1, reg.Len())

	view, err := entry.Controller.View()
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPreflight, view.Status)
	assert.Equal(t, testID, view.Test.ID)

	got, err := svc.Get(entry.Controller.ID(), "u1")
	require.NoError(t, err)
	assert.Same(t, entry, got)

	_, err = svc.Get(entry.Controller.ID(), "u2")
	assert.ErrorIs(t, err, session.ErrSessionForbidden)
}

func TestSessionServiceCreateUnknownTest(t *testing.T) {
	svc, reg := newSessionService(t)

	_, err := svc.Create(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, catalog.ErrTestNotFound)
	assert.Equal(t, 0, reg.Len())
}

func TestSessionServiceStartsWithoutCameraWhenAllowed(t *testing.T) {
	svc, _ := newSessionService(t)

	entry, err := svc.Create(context.Background(), "u1", firstTestID(t))
	require.NoError(t, err)

	// No browser is attached to the relay, so the camera is unavailable.
	require.NoError(t, entry.Controller.Start(context.Background()))
	view, err := entry.Controller.View()
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusRunning, view.Status)
	assert.True(t, view.Running)
}

func TestSessionServiceLeave(t *testing.T) {
	svc, reg := newSessionService(t)

	entry, err := svc.Create(context.Background(), "u1", firstTestID(t))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Leave(entry.Controller.ID(), "u2"), session.ErrSessionForbidden)
	require.NoError(t, svc.Leave(entry.Controller.ID(), "u1"))
	assert.Equal(t, 0, reg.Len())

	_, err = svc.Get(entry.Controller.ID(), "u1")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
