package cinema

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EngineTask is a unit of work that must run on the engine context.
type EngineTask func(ec *EngineContext)

// EngineContext is handed to tasks while they run on the engine. Holding one
// is what allows a caller to create or destroy engine-owned resources.
type EngineContext struct {
	engine *Engine
	frame  uint64
}

// Frame returns the number of the engine frame the task is running in.
func (ec *EngineContext) Frame() uint64 {
	return ec.frame
}

// Dispatcher posts fire-and-forget work onto the engine context.
type Dispatcher interface {
	// Post enqueues task and reports whether the engine accepted it.
	// It never blocks.
	Post(task EngineTask) bool
}

// Engine owns the render-side execution context: a FIFO mailbox of tasks
// drained either by Run on its own goroutine or by the host calling Frame
// once per rendered frame. Only one driver may be used at a time.
type Engine struct {
	logger *zap.SugaredLogger

	lock    sync.Mutex
	queue   []EngineTask
	stopped bool

	// serialises frames so tasks never run concurrently
	frameLock sync.Mutex
	frame     uint64
	frameHook EngineTask

	wake     chan struct{}
	stopChan chan struct{}

	surfaces *surfaceBroker
}

// NewEngine creates an engine whose broker allows at most maxSurfaces live surfaces.
func NewEngine(logger *zap.SugaredLogger, maxSurfaces int) *Engine {
	logger = logger.Named("engine")

	e := &Engine{
		logger:   logger,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		surfaces: newSurfaceBroker(logger, maxSurfaces),
	}

	logger.Debug("Created engine instance")
	return e
}

// Surfaces returns the engine's surface broker.
func (e *Engine) Surfaces() SurfaceBroker {
	return e.surfaces
}

// SetReady toggles whether the broker will hand out new surfaces.
func (e *Engine) SetReady(ready bool) {
	e.surfaces.setReady(ready)
	e.logger.Debugw("Engine readiness changed", "ready", ready)
}

// SetFrameHook installs a task that runs at the end of every frame that
// executed at least one task or was driven explicitly by the host.
func (e *Engine) SetFrameHook(hook EngineTask) {
	e.frameLock.Lock()
	defer e.frameLock.Unlock()

	e.frameHook = hook
}

// Post implements Dispatcher.
func (e *Engine) Post(task EngineTask) bool {
	e.lock.Lock()
	if e.stopped {
		e.lock.Unlock()
		e.logger.Debug("Engine stopped, dropping posted task")
		return false
	}
	e.queue = append(e.queue, task)
	e.lock.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}

	return true
}

// Frame runs every task queued before the call, then the frame hook.
// Tasks posted while the frame runs wait for the next frame.
func (e *Engine) Frame() int {
	e.frameLock.Lock()
	defer e.frameLock.Unlock()

	e.lock.Lock()
	if e.stopped {
		e.lock.Unlock()
		return 0
	}
	tasks := e.queue
	e.queue = nil
	e.lock.Unlock()

	e.frame++
	ec := &EngineContext{engine: e, frame: e.frame}

	for _, task := range tasks {
		task(ec)
	}

	if e.frameHook != nil {
		e.frameHook(ec)
	}

	return len(tasks)
}

// Run drives the engine until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Debug("Engine loop starting")

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("Engine loop cancelled")
			return ctx.Err()
		case <-e.stopChan:
			e.logger.Debug("Engine loop stopped")
			return nil
		case <-e.wake:
			e.Frame()
		}
	}
}

// Pending returns the number of tasks waiting for the next frame.
func (e *Engine) Pending() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	return len(e.queue)
}

// Stop refuses further work, runs what is already queued one last time with
// surface creation disabled, then tears down every live surface. It waits for
// a running frame to finish, so it must not be called from inside a task.
func (e *Engine) Stop() {
	e.frameLock.Lock()
	defer e.frameLock.Unlock()

	e.lock.Lock()
	if e.stopped {
		e.lock.Unlock()
		return
	}
	e.stopped = true
	tasks := e.queue
	e.queue = nil
	e.lock.Unlock()

	close(e.stopChan)
	e.surfaces.setReady(false)

	e.frame++
	ec := &EngineContext{engine: e, frame: e.frame}
	for _, task := range tasks {
		task(ec)
	}

	e.surfaces.teardown()

	e.logger.Infow("Engine stopped", "drainedTasks", len(tasks))
}
