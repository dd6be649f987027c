package cinema

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/mo"
	"go.uber.org/zap"
)

const (
	// first texture name handed out; zero is never a valid texture
	firstTextureName = 1

	defaultMaxSurfaces = 2
)

// Surface is a GPU-consumable video surface. Decoders present frames into it,
// the engine latches them once per frame.
type Surface struct {
	id        uint64
	texture   uint32
	released  atomic.Bool
	timestamp atomic.Int64
}

// ID returns the broker assigned surface id.
func (s *Surface) ID() uint64 {
	return s.id
}

// Texture returns the engine texture name backing the surface.
func (s *Surface) Texture() uint32 {
	return s.texture
}

// Present publishes a decoded frame with the given presentation timestamp.
func (s *Surface) Present(ts time.Duration) error {
	if s.released.Load() {
		return ErrSurfaceReleased
	}
	s.timestamp.Store(int64(ts))
	return nil
}

// Timestamp returns the presentation timestamp of the last presented frame.
func (s *Surface) Timestamp() time.Duration {
	return time.Duration(s.timestamp.Load())
}

// Released reports whether the broker already released the surface.
func (s *Surface) Released() bool {
	return s.released.Load()
}

func (s *Surface) String() string {
	return fmt.Sprintf("<surface: %d, texture: %d>", s.id, s.texture)
}

// SurfaceBroker creates and destroys video surfaces. Both operations need an
// *EngineContext, which only exists inside a task running on the engine.
type SurfaceBroker interface {
	// PrepareSurface allocates a new surface or reports why it could not.
	PrepareSurface(ec *EngineContext) mo.Result[*Surface]

	// ReleaseSurface frees surface. Nil and already released surfaces are ignored.
	ReleaseSurface(ec *EngineContext, surface *Surface)
}

type surfaceBroker struct {
	logger      *zap.SugaredLogger
	lock        sync.Mutex
	live        map[uint64]*Surface
	maxSurfaces int
	nextID      uint64
	nextTexture uint32
	ready       bool
	torn        bool
}

func newSurfaceBroker(logger *zap.SugaredLogger, maxSurfaces int) *surfaceBroker {
	if maxSurfaces <= 0 {
		maxSurfaces = defaultMaxSurfaces
	}

	b := &surfaceBroker{
		logger:      logger.Named("surfaces"),
		live:        make(map[uint64]*Surface),
		maxSurfaces: maxSurfaces,
		nextTexture: firstTextureName,
		ready:       true,
	}

	b.logger.Debugw("Created surface broker instance", "maxSurfaces", maxSurfaces)
	return b
}

func (b *surfaceBroker) PrepareSurface(_ *EngineContext) mo.Result[*Surface] {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.torn {
		return mo.Err[*Surface](fmt.Errorf("prepare surface: %w", ErrEngineStopped))
	}

	if !b.ready {
		b.logger.Warn("Engine not ready, refusing to create surface")
		return mo.Err[*Surface](fmt.Errorf("prepare surface: engine not ready: %w", ErrSurfaceCreationFailed))
	}

	if len(b.live) >= b.maxSurfaces {
		b.logger.Warnw("Surface limit reached", "live", len(b.live), "max", b.maxSurfaces)
		return mo.Err[*Surface](fmt.Errorf("prepare surface: %d surfaces live: %w", len(b.live), ErrSurfaceCreationFailed))
	}

	b.nextID++
	surface := &Surface{id: b.nextID, texture: b.nextTexture}
	b.nextTexture++
	b.live[surface.id] = surface

	b.logger.Debugw("Created surface", "surface", surface)
	return mo.Ok(surface)
}

func (b *surfaceBroker) ReleaseSurface(_ *EngineContext, surface *Surface) {
	if surface == nil {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	b.release(surface)
}

// must be called with the lock held
func (b *surfaceBroker) release(surface *Surface) {
	if !surface.released.CompareAndSwap(false, true) {
		return
	}

	delete(b.live, surface.id)
	b.logger.Debugw("Released surface", "surface", surface)
}

func (b *surfaceBroker) setReady(ready bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.ready = ready
}

// teardown invalidates every live surface; used when the engine goes away
func (b *surfaceBroker) teardown() {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, surface := range b.live {
		b.release(surface)
	}
	b.torn = true

	b.logger.Debug("Surface broker torn down")
}

func (b *surfaceBroker) liveCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.live)
}

func (b *surfaceBroker) String() string {
	return fmt.Sprintf("<%d live surfaces>", b.liveCount())
}
