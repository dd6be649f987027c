package cinema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestCinema(t *testing.T) (*Cinema, *harness) {
	t.Helper()

	h := newHarness(t, true, DefaultPolicy())
	c := &Cinema{
		logger:    zap.NewNop().Sugar(),
		session:   h.coordinator,
		moviePath: movieA,
		running:   true,
	}

	return c, h
}

func TestCinema_Headset(t *testing.T) {
	t.Run("resumes after mount", func(t *testing.T) {
		c, h := newTestCinema(t)
		h.play(t, movieA)

		c.handleRemoteCommand(RemoteUnmount)
		assert.Equal(t, StatePaused, h.coordinator.State())

		c.handleRemoteCommand(RemoteMount)
		assert.Equal(t, StatePlaying, h.coordinator.State())
	})

	t.Run("stays paused when paused before unmount", func(t *testing.T) {
		c, h := newTestCinema(t)
		h.play(t, movieA)

		c.handleRemoteCommand(RemotePause)
		c.handleRemoteCommand(RemoteUnmount)
		c.handleRemoteCommand(RemoteMount)
		assert.Equal(t, StatePaused, h.coordinator.State())

		c.handleRemoteCommand(RemoteToggle)
		assert.Equal(t, StatePlaying, h.coordinator.State())
	})
}

func TestCinema_AppLifecycle(t *testing.T) {
	c, h := newTestCinema(t)
	h.play(t, movieA)

	c.appPaused()
	assert.Equal(t, StatePaused, h.coordinator.State())

	// a second pause from the background has nothing to do
	c.appPaused()
	assert.False(t, c.running)

	c.appResumed()
	assert.Equal(t, StatePlaying, h.coordinator.State())
	assert.True(t, c.running)
}

func TestCinema_RemoteRestart(t *testing.T) {
	c, h := newTestCinema(t)
	first := h.play(t, movieA)

	c.handleRemoteCommand(RemoteRestart)
	h.frames()

	snapshot := h.coordinator.Snapshot()
	assert.Equal(t, StatePlaying, snapshot.State)
	assert.Equal(t, uint64(2), snapshot.Epoch)
	assert.True(t, first.isReleased())
}

func TestCinema_SignalStopNeverBlocks(t *testing.T) {
	c := &Cinema{logger: zap.NewNop().Sugar(), stopChannel: make(chan bool, 1)}

	c.signalStop()
	c.signalStop()
	assert.Len(t, c.stopChannel, 1)
}
