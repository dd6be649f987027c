package cinema

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Screen is the renderer-side view of the movie: its size, aspect ratio and
// the last frame latched from the video surface.
type Screen struct {
	logger *zap.SugaredLogger
	lock   sync.RWMutex

	width     int
	height    int
	completed bool
	lastErr   error

	latched     time.Duration
	frameUpdate bool
}

// NewScreen creates an empty screen.
func NewScreen(logger *zap.SugaredLogger) *Screen {
	logger = logger.Named("screen")
	logger.Debug("Created screen instance")

	return &Screen{logger: logger}
}

// NotifyVideoSize implements Renderer.
func (s *Screen) NotifyVideoSize(width, height int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.width, s.height = width, height
	s.completed = false
	s.lastErr = nil

	s.logger.Debugw("Movie size updated", "width", width, "height", height, "aspect", s.aspect())
}

// NotifyCompletion implements Renderer.
func (s *Screen) NotifyCompletion() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.completed = true
	s.logger.Debug("Movie ended")
}

// NotifyFailure implements Renderer.
func (s *Screen) NotifyFailure(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.lastErr = err
	s.logger.Debugw("Movie failed", "error", err)
}

// Size returns the movie dimensions, zero until known.
func (s *Screen) Size() (int, int) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.width, s.height
}

// Completed reports whether the last movie played to the end.
func (s *Screen) Completed() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.completed
}

// Failure returns the last reported failure.
func (s *Screen) Failure() error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.lastErr
}

// Aspect returns width / height, or 1 while the size is unknown.
func (s *Screen) Aspect() float32 {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.aspect()
}

func (s *Screen) aspect() float32 {
	if s.height == 0 {
		return 1
	}
	return float32(s.width) / float32(s.height)
}

// Fit returns the half extents of the movie quad inside a screen of the given
// size: a screen wider than the movie clamps to its height, otherwise to its width.
func (s *Screen) Fit(screenWidth, screenHeight float32) (float32, float32) {
	aspect := s.Aspect()
	if aspect == 0 {
		aspect = 1
	}

	if screenWidth/screenHeight > aspect {
		heightScale := screenHeight * 0.5
		return heightScale * aspect, heightScale
	}

	widthScale := screenWidth * 0.5
	return widthScale, widthScale / aspect
}

// Latch records the surface's newest frame and reports whether it differs
// from the one latched last frame. Runs on the engine context.
func (s *Screen) Latch(_ *EngineContext, surface *Surface) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.frameUpdate = false
	if surface == nil || surface.Released() || s.width == 0 {
		return false
	}

	if ts := surface.Timestamp(); ts != s.latched {
		s.latched = ts
		s.frameUpdate = true
	}

	return s.frameUpdate
}

func (s *Screen) String() string {
	width, height := s.Size()
	return fmt.Sprintf("<screen: %dx%d>", width, height)
}

type multiRenderer []Renderer

// MultiRenderer forwards every event to each renderer in order.
func MultiRenderer(renderers ...Renderer) Renderer {
	return multiRenderer(renderers)
}

func (m multiRenderer) NotifyVideoSize(width, height int) {
	for _, r := range m {
		r.NotifyVideoSize(width, height)
	}
}

func (m multiRenderer) NotifyCompletion() {
	for _, r := range m {
		r.NotifyCompletion()
	}
}

func (m multiRenderer) NotifyFailure(err error) {
	for _, r := range m {
		r.NotifyFailure(err)
	}
}
