package cinema

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notificationLog struct {
	lock          sync.Mutex
	notifications []Notification
}

func (l *notificationLog) emit(n Notification) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.notifications = append(l.notifications, n)
}

func (l *notificationLog) count(kind NotificationKind) int {
	l.lock.Lock()
	defer l.lock.Unlock()

	count := 0
	for _, n := range l.notifications {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

type headlessFixture struct {
	clock   *clockwork.FakeClock
	log     *notificationLog
	decoder Decoder
	surface *Surface
	movie   string
}

func newHeadlessFixture(t *testing.T) *headlessFixture {
	t.Helper()

	dir := t.TempDir()
	movie := filepath.Join(dir, "movie.MP4")
	require.NoError(t, os.WriteFile(movie, []byte("not really a movie"), 0644))

	f := &headlessFixture{
		clock: clockwork.NewFakeClock(),
		log:   &notificationLog{},
		movie: movie,
	}

	factory := NewHeadlessDecoderFactory(zap.NewNop().Sugar(), f.clock, HeadlessOptions{
		Width:            1280,
		Height:           720,
		Duration:         2 * time.Minute,
		SupportedFormats: []string{"mp4"},
	})
	f.decoder = factory(f.log.emit)
	f.surface = newSurfaceBroker(zap.NewNop().Sugar(), 2).PrepareSurface(&EngineContext{}).MustGet()

	t.Cleanup(f.decoder.Release)
	return f
}

func (f *headlessFixture) requireCompletion(t *testing.T) {
	t.Helper()

	require.Eventually(t, func() bool {
		return f.log.count(NotificationCompletion) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHeadlessDecoder_PrepareErrors(t *testing.T) {
	f := newHeadlessFixture(t)

	err := f.decoder.Prepare(filepath.Join(filepath.Dir(f.movie), "missing.mp4"), f.surface)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, CodeIO, codeOf(err))

	unsupported := filepath.Join(filepath.Dir(f.movie), "movie.avi")
	require.NoError(t, os.WriteFile(unsupported, nil, 0644))
	assert.Equal(t, CodeUnsupported, codeOf(f.decoder.Prepare(unsupported, f.surface)))

	assert.ErrorIs(t, f.decoder.Start(), errNotPrepared)
	assert.ErrorIs(t, f.decoder.Pause(), errNotStarted)
}

func TestHeadlessDecoder_PlaysToCompletion(t *testing.T) {
	f := newHeadlessFixture(t)

	require.NoError(t, f.decoder.Prepare(f.movie, f.surface))
	require.NoError(t, f.decoder.Start())

	require.Equal(t, 1, f.log.count(NotificationSizeKnown))
	assert.Equal(t, SizeKnown(1280, 720), f.log.notifications[0])

	f.clock.Advance(2 * time.Minute)
	f.requireCompletion(t)
	assert.Equal(t, 2*time.Minute, f.surface.Timestamp())
}

func TestHeadlessDecoder_PauseKeepsPosition(t *testing.T) {
	f := newHeadlessFixture(t)

	require.NoError(t, f.decoder.Prepare(f.movie, f.surface))
	require.NoError(t, f.decoder.Start())

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.decoder.Pause())
	assert.Equal(t, 30*time.Second, f.surface.Timestamp())

	// paused decoders do not finish
	f.clock.Advance(5 * time.Minute)
	assert.Never(t, func() bool {
		return f.log.count(NotificationCompletion) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, f.decoder.Resume())
	f.clock.Advance(90 * time.Second)
	f.requireCompletion(t)
}

func TestHeadlessDecoder_Release(t *testing.T) {
	f := newHeadlessFixture(t)

	require.NoError(t, f.decoder.Prepare(f.movie, f.surface))
	require.NoError(t, f.decoder.Start())

	f.decoder.Release()
	f.clock.Advance(3 * time.Minute)

	assert.Never(t, func() bool {
		return f.log.count(NotificationCompletion) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.ErrorIs(t, f.decoder.Resume(), errReleased)
	assert.ErrorIs(t, f.decoder.SetVolume(0.5), errReleased)
}

func TestHeadlessDecoder_SetVolume(t *testing.T) {
	f := newHeadlessFixture(t)

	require.NoError(t, f.decoder.SetVolume(1.7))
	assert.Equal(t, float32(1), f.decoder.(*headlessDecoder).volume)

	require.NoError(t, f.decoder.SetVolume(0.25))
	assert.Equal(t, float32(0.25), f.decoder.(*headlessDecoder).volume)
}
