package cinema

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Policy tunes how the coordinator treats finished sessions.
type Policy struct {
	// RetainSurfaceOnCompletion keeps the surface after the movie ends until
	// the next StartMovie or Close. Off by default so idle GPU memory is freed.
	RetainSurfaceOnCompletion bool

	// LoopOnCompletion restarts the same movie when it ends.
	LoopOnCompletion bool

	// Volume applied to every new decoder, in the [0, 1] range.
	Volume float32
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{Volume: 1.0}
}

// Coordinator serialises every operation on a playback session, whichever
// context it comes from, and runs surface and decoder work on the engine.
// None of its methods block on the engine or return errors; callers observe
// the outcome through State, Snapshot and the Renderer.
type Coordinator struct {
	id       string
	logger   *zap.SugaredLogger
	lock     sync.Mutex
	session  *playbackSession
	policy   Policy
	engine   Dispatcher
	broker   SurfaceBroker
	decoders DecoderFactory
	renderer Renderer
}

// NewCoordinator creates a coordinator for a single playback session.
func NewCoordinator(
	logger *zap.SugaredLogger,
	engine Dispatcher,
	broker SurfaceBroker,
	decoders DecoderFactory,
	renderer Renderer,
	permissionGranted bool,
	policy Policy,
) *Coordinator {
	id := uuid.NewString()
	logger = logger.Named("session").With("sessionID", id)

	c := &Coordinator{
		id:       id,
		logger:   logger,
		session:  newPlaybackSession(logger, permissionGranted),
		policy:   policy,
		engine:   engine,
		broker:   broker,
		decoders: decoders,
		renderer: renderer,
	}

	logger.Debugw("Created session coordinator", "permissionGranted", permissionGranted, "policy", policy)
	return c
}

// ID returns the session id used in log lines.
func (c *Coordinator) ID() string {
	return c.id
}

// StartMovie plays the movie at path, an already resolved absolute path.
// Without storage permission the request is kept until OnPermissionResult.
// Any surface or decoder from a previous attempt is released first.
func (c *Coordinator) StartMovie(path string) {
	if path == "" {
		c.logger.Warn("Ignoring start request with empty media path")
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.start(path)
}

// start must be called with the lock held.
func (c *Coordinator) start(path string) {
	if c.session.closed {
		c.logger.Debugw("Session closed, ignoring start request", "path", path)
		return
	}

	c.logger.Infow("Starting movie", "path", path, "from", c.session.state)

	begin, old := c.session.start(path)
	c.releaseLater(old)

	if !begin {
		c.logger.Infow("Storage permission not granted yet, deferring movie start", "path", path)
		return
	}

	c.scheduleSurface(c.session.epoch, path)
}

// OnPermissionResult delivers the storage permission decision.
func (c *Coordinator) OnPermissionResult(granted bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session.closed {
		return
	}

	c.logger.Infow("Storage permission result", "granted", granted, "state", c.session.state)

	begin, denied, old := c.session.permissionResult(granted)
	c.releaseLater(old)

	switch {
	case begin:
		c.scheduleSurface(c.session.epoch, c.session.mediaPath)
	case denied:
		c.postFailure(c.session.lastErr)
	}
}

// Pause pauses a playing movie. The surface and decoder are kept.
func (c *Coordinator) Pause() {
	c.lock.Lock()
	defer c.lock.Unlock()

	decoder, ok := c.session.pause()
	if !ok {
		c.logger.Debugw("Nothing to pause", "state", c.session.state)
		return
	}

	c.post(func(_ *EngineContext) {
		if err := decoder.Pause(); err != nil {
			c.logger.Warnw("Failed to pause decoder", "error", err)
		}
	})
}

// Resume continues a paused movie.
func (c *Coordinator) Resume() {
	c.lock.Lock()
	defer c.lock.Unlock()

	decoder, ok := c.session.resume()
	if !ok {
		c.logger.Debugw("Nothing to resume", "state", c.session.state)
		return
	}

	c.post(func(_ *EngineContext) {
		if err := decoder.Resume(); err != nil {
			c.logger.Warnw("Failed to resume decoder", "error", err)
		}
	})
}

// TogglePause pauses a playing movie or resumes a paused one.
func (c *Coordinator) TogglePause() {
	c.lock.Lock()
	state := c.session.state
	c.lock.Unlock()

	// the state may change in between; Pause and Resume re-check it
	if state == StatePaused {
		c.Resume()
	} else {
		c.Pause()
	}
}

// SetVolume changes the volume of the current and all later decoders.
func (c *Coordinator) SetVolume(volume float32) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.policy.Volume = volume
	decoder := c.session.decoder
	if decoder == nil {
		return
	}

	c.post(func(_ *EngineContext) {
		if err := decoder.SetVolume(volume); err != nil {
			c.logger.Warnw("Failed to set decoder volume", "volume", volume, "error", err)
		}
	})
}

// SetPolicy replaces the completion policy and volume.
func (c *Coordinator) SetPolicy(policy Policy) {
	c.lock.Lock()
	changed := c.policy.Volume != policy.Volume
	c.policy = policy
	c.lock.Unlock()

	if changed {
		c.SetVolume(policy.Volume)
	}
}

// Deliver hands a decoder notification to the session. Notifications from
// decoders of an earlier epoch are dropped.
func (c *Coordinator) Deliver(n Notification) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session.closed || n.Epoch != c.session.epoch {
		c.logger.Debugw("Dropping stale decoder notification",
			"kind", n.Kind, "epoch", n.Epoch, "current", c.session.epoch)
		return
	}

	switch n.Kind {
	case NotificationSizeKnown:
		c.onSizeKnown(n.Width, n.Height)
	case NotificationCompletion:
		c.onCompletion()
	case NotificationError:
		c.onError(n.Code)
	default:
		c.logger.Warnw("Unknown decoder notification", "kind", n.Kind)
	}
}

// Close releases the decoder and surface unconditionally. Every later call
// on the coordinator is ignored.
func (c *Coordinator) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session.closed {
		return
	}

	c.logger.Info("Closing playback session")
	old := c.session.close()

	if old.empty() {
		return
	}

	if !c.engine.Post(func(ec *EngineContext) { c.release(ec, old) }) {
		// engine teardown already invalidated the surface
		if old.decoder != nil {
			old.decoder.Release()
		}
	}
}

// State returns the current session state.
func (c *Coordinator) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.session.state
}

// Snapshot returns a copy of the session.
func (c *Coordinator) Snapshot() Snapshot {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.session.snapshot()
}

// Surface returns the surface currently owned by the session, if any. Taking
// an EngineContext keeps readers on the engine, where surfaces are latched.
func (c *Coordinator) Surface(_ *EngineContext) *Surface {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.session.surface
}

func (c *Coordinator) onSizeKnown(width, height int) {
	if !c.session.sizeKnown(width, height) {
		return
	}

	c.logger.Infow("Video size known", "width", width, "height", height)
	c.post(func(_ *EngineContext) {
		c.renderer.NotifyVideoSize(width, height)
	})
}

func (c *Coordinator) onCompletion() {
	old, ok := c.session.complete(c.policy.RetainSurfaceOnCompletion)
	if !ok {
		c.logger.Debugw("Ignoring completion", "state", c.session.state)
		return
	}

	c.logger.Infow("Movie completed", "path", c.session.mediaPath,
		"retainSurface", c.policy.RetainSurfaceOnCompletion)

	c.releaseLater(old)
	c.post(func(_ *EngineContext) {
		c.renderer.NotifyCompletion()
	})

	if c.policy.LoopOnCompletion {
		path, epoch := c.session.mediaPath, c.session.epoch
		c.post(func(_ *EngineContext) {
			c.restart(epoch, path)
		})
	}
}

// restart plays path again unless the session moved on after epoch completed.
func (c *Coordinator) restart(epoch uint64, path string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session.epoch != epoch || c.session.state != StateCompleted {
		c.logger.Debugw("Session moved on, not looping",
			"epoch", epoch, "current", c.session.epoch, "state", c.session.state)
		return
	}

	c.logger.Infow("Looping movie", "path", path)
	c.start(path)
}

func (c *Coordinator) onError(code ErrorCode) {
	failure, old, ok := c.session.fail(code)
	if !ok {
		c.logger.Debugw("Ignoring decoder error", "code", code, "state", c.session.state)
		return
	}

	c.logger.Warnw("Decoder reported an error", "path", c.session.mediaPath, "code", code)

	c.releaseLater(old)
	c.postFailure(failure)
}

// scheduleSurface posts the creation of the surface and decoder for epoch.
// Must be called with the lock held.
func (c *Coordinator) scheduleSurface(epoch uint64, path string) {
	if c.engine.Post(func(ec *EngineContext) { c.prepare(ec, epoch, path) }) {
		return
	}

	// no engine left to tell the renderer on; the state is all callers get
	c.session.surfaceFailed(ErrEngineStopped)
}

// prepare runs on the engine context. The lock is only held while the
// session is inspected or updated, never while the decoder works, so decoder
// notifications emitted from Prepare or Start can enter the coordinator.
func (c *Coordinator) prepare(ec *EngineContext, epoch uint64, path string) {
	surface, err := c.broker.PrepareSurface(ec).Get()

	c.lock.Lock()
	if !c.session.current(epoch) {
		c.lock.Unlock()
		c.logger.Debugw("Start request superseded before surface creation finished", "epoch", epoch)
		c.broker.ReleaseSurface(ec, surface)
		return
	}

	if err != nil {
		failure := c.session.surfaceFailed(err)
		c.lock.Unlock()
		c.renderer.NotifyFailure(failure)
		return
	}

	decoder := c.decoders(func(n Notification) {
		n.Epoch = epoch
		c.Deliver(n)
	})
	c.session.surface = surface
	c.session.decoder = decoder
	volume := c.policy.Volume
	c.lock.Unlock()

	err = c.startDecoder(decoder, path, surface, volume)

	c.lock.Lock()
	if !c.session.current(epoch) || c.session.decoder != decoder {
		// a newer start or a notification already took the decoder away
		c.lock.Unlock()
		return
	}

	if err != nil {
		failure, old := c.session.prepareFailed(err)
		c.lock.Unlock()
		c.release(ec, old)
		c.renderer.NotifyFailure(failure)
		return
	}

	c.session.started(decoder)
	c.lock.Unlock()

	c.logger.Infow("Movie playing", "path", path, "surface", surface, "epoch", epoch)
}

func (c *Coordinator) startDecoder(decoder Decoder, path string, surface *Surface, volume float32) error {
	if err := decoder.Prepare(path, surface); err != nil {
		return err
	}

	if err := decoder.SetVolume(volume); err != nil {
		c.logger.Warnw("Failed to set initial decoder volume", "volume", volume, "error", err)
	}

	if err := decoder.Start(); err != nil {
		return err
	}

	return nil
}

// releaseLater schedules the release of resources taken from the session.
// Must be called with the lock held.
func (c *Coordinator) releaseLater(old released) {
	if old.empty() {
		return
	}

	if !c.engine.Post(func(ec *EngineContext) { c.release(ec, old) }) && old.decoder != nil {
		old.decoder.Release()
	}
}

// release runs on the engine context, decoder first so it stops writing
// into the surface before the surface goes away.
func (c *Coordinator) release(ec *EngineContext, old released) {
	if old.decoder != nil {
		old.decoder.Release()
	}
	c.broker.ReleaseSurface(ec, old.surface)
}

// post runs task on the engine, logging when the engine is gone.
func (c *Coordinator) post(task EngineTask) {
	if !c.engine.Post(task) {
		c.logger.Debug("Engine stopped, dropping task")
	}
}

func (c *Coordinator) postFailure(err error) {
	c.post(func(_ *EngineContext) {
		c.renderer.NotifyFailure(err)
	})
}
