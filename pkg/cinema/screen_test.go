package cinema

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestScreen_Fit(t *testing.T) {
	screen := NewScreen(zap.NewNop().Sugar())

	width, height := screen.Fit(2, 2)
	assert.InDelta(t, 1, width, 1e-6, "unknown size is square")
	assert.InDelta(t, 1, height, 1e-6)

	screen.NotifyVideoSize(1920, 1080)
	assert.InDelta(t, 16.0/9.0, screen.Aspect(), 1e-6)

	// wider than the movie: clamp to height
	width, height = screen.Fit(4, 2)
	assert.InDelta(t, 16.0/9.0, width, 1e-6)
	assert.InDelta(t, 1, height, 1e-6)

	// narrower than the movie: clamp to width
	width, height = screen.Fit(2, 2)
	assert.InDelta(t, 1, width, 1e-6)
	assert.InDelta(t, 9.0/16.0, height, 1e-6)
}

func TestScreen_Latch(t *testing.T) {
	screen := NewScreen(zap.NewNop().Sugar())
	broker := newSurfaceBroker(zap.NewNop().Sugar(), 2)
	ec := &EngineContext{}
	surface := broker.PrepareSurface(ec).MustGet()

	assert.False(t, screen.Latch(ec, nil))
	assert.NoError(t, surface.Present(10*time.Millisecond))
	assert.False(t, screen.Latch(ec, surface), "size still unknown")

	screen.NotifyVideoSize(640, 480)
	assert.True(t, screen.Latch(ec, surface))
	assert.False(t, screen.Latch(ec, surface), "same frame twice")

	assert.NoError(t, surface.Present(20*time.Millisecond))
	assert.True(t, screen.Latch(ec, surface))

	broker.ReleaseSurface(ec, surface)
	assert.False(t, screen.Latch(ec, surface))
}

func TestScreen_Events(t *testing.T) {
	screen := NewScreen(zap.NewNop().Sugar())

	screen.NotifyCompletion()
	assert.True(t, screen.Completed())

	failure := errors.New("boom")
	screen.NotifyFailure(failure)
	assert.Equal(t, failure, screen.Failure())

	screen.NotifyVideoSize(320, 240)
	assert.False(t, screen.Completed())
	assert.NoError(t, screen.Failure())
	assert.Equal(t, "<screen: 320x240>", screen.String())
}

func TestMultiRenderer(t *testing.T) {
	first, second := &fakeRenderer{}, &fakeRenderer{}
	renderer := MultiRenderer(first, second)

	renderer.NotifyVideoSize(1, 2)
	renderer.NotifyCompletion()
	renderer.NotifyFailure(ErrDecoderRuntime)

	for _, r := range []*fakeRenderer{first, second} {
		assert.Equal(t, [][2]int{{1, 2}}, r.sizes)
		assert.Equal(t, 1, r.completions)
		assert.Equal(t, ErrDecoderRuntime, r.lastFailure())
	}
}
