package cinema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSurfaceBroker_Limit(t *testing.T) {
	broker := newSurfaceBroker(zap.NewNop().Sugar(), 2)
	ec := &EngineContext{}

	first := broker.PrepareSurface(ec).MustGet()
	second := broker.PrepareSurface(ec).MustGet()
	assert.NotEqual(t, first.ID(), second.ID())
	assert.NotEqual(t, first.Texture(), second.Texture())
	assert.NotZero(t, first.Texture())

	_, err := broker.PrepareSurface(ec).Get()
	assert.ErrorIs(t, err, ErrSurfaceCreationFailed)

	broker.ReleaseSurface(ec, first)
	assert.True(t, first.Released())
	assert.Equal(t, 1, broker.liveCount())

	// double release and nil are ignored
	broker.ReleaseSurface(ec, first)
	broker.ReleaseSurface(ec, nil)
	assert.Equal(t, 1, broker.liveCount())

	assert.True(t, broker.PrepareSurface(ec).IsOk())
}

func TestSurfaceBroker_DefaultLimit(t *testing.T) {
	broker := newSurfaceBroker(zap.NewNop().Sugar(), 0)
	assert.Equal(t, defaultMaxSurfaces, broker.maxSurfaces)
}

func TestSurfaceBroker_NotReady(t *testing.T) {
	broker := newSurfaceBroker(zap.NewNop().Sugar(), 2)
	ec := &EngineContext{}

	broker.setReady(false)
	assert.ErrorIs(t, broker.PrepareSurface(ec).Error(), ErrSurfaceCreationFailed)

	broker.setReady(true)
	assert.True(t, broker.PrepareSurface(ec).IsOk())
}

func TestSurfaceBroker_Teardown(t *testing.T) {
	broker := newSurfaceBroker(zap.NewNop().Sugar(), 2)
	ec := &EngineContext{}

	surface := broker.PrepareSurface(ec).MustGet()
	broker.teardown()

	assert.True(t, surface.Released())
	assert.Zero(t, broker.liveCount())
	assert.ErrorIs(t, broker.PrepareSurface(ec).Error(), ErrEngineStopped)
}

func TestSurface_Present(t *testing.T) {
	broker := newSurfaceBroker(zap.NewNop().Sugar(), 2)
	ec := &EngineContext{}
	surface := broker.PrepareSurface(ec).MustGet()

	require.NoError(t, surface.Present(40*time.Millisecond))
	assert.Equal(t, 40*time.Millisecond, surface.Timestamp())

	broker.ReleaseSurface(ec, surface)
	assert.ErrorIs(t, surface.Present(80*time.Millisecond), ErrSurfaceReleased)
	assert.Equal(t, 40*time.Millisecond, surface.Timestamp())
}
