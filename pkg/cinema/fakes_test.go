package cinema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDecoder struct {
	factory *fakeDecoderFactory
	emit    func(Notification)

	lock       sync.Mutex
	path       string
	surface    *Surface
	prepareErr error
	startErr   error
	onStart    []Notification
	startHook  func()
	started    bool
	paused     bool
	released   bool
	volume     float32
}

func (d *fakeDecoder) Prepare(path string, surface *Surface) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.path = path
	d.surface = surface
	return d.prepareErr
}

func (d *fakeDecoder) Start() error {
	d.lock.Lock()
	if d.startErr != nil {
		d.lock.Unlock()
		return d.startErr
	}
	d.started = true
	notifications, hook := d.onStart, d.startHook
	d.lock.Unlock()

	if hook != nil {
		hook()
	}

	for _, n := range notifications {
		d.emit(n)
	}
	return nil
}

func (d *fakeDecoder) Pause() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.paused = true
	return nil
}

func (d *fakeDecoder) Resume() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.paused = false
	return nil
}

func (d *fakeDecoder) SetVolume(volume float32) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.volume = volume
	return nil
}

func (d *fakeDecoder) Release() {
	d.lock.Lock()
	if d.released {
		d.lock.Unlock()
		return
	}
	d.released = true
	d.lock.Unlock()

	d.factory.released()
}

func (d *fakeDecoder) isReleased() bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.released
}

func (d *fakeDecoder) isPaused() bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.paused
}

func (d *fakeDecoder) currentVolume() float32 {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.volume
}

// fakeDecoderFactory counts live decoders and remembers the peak.
type fakeDecoderFactory struct {
	lock       sync.Mutex
	decoders   []*fakeDecoder
	live       int
	maxLive    int
	prepareErr error
	startErr   error
	onStart    []Notification
	startHook  func()
}

func newFakeDecoderFactory() *fakeDecoderFactory {
	return &fakeDecoderFactory{
		onStart: []Notification{SizeKnown(1920, 1080)},
	}
}

func (f *fakeDecoderFactory) create(emit func(Notification)) Decoder {
	f.lock.Lock()
	defer f.lock.Unlock()

	d := &fakeDecoder{
		factory:    f,
		emit:       emit,
		prepareErr: f.prepareErr,
		startErr:   f.startErr,
		onStart:    f.onStart,
		startHook:  f.startHook,
	}
	f.decoders = append(f.decoders, d)

	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}

	return d
}

func (f *fakeDecoderFactory) released() {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.live--
}

func (f *fakeDecoderFactory) last() *fakeDecoder {
	f.lock.Lock()
	defer f.lock.Unlock()

	if len(f.decoders) == 0 {
		return nil
	}
	return f.decoders[len(f.decoders)-1]
}

func (f *fakeDecoderFactory) created() int {
	f.lock.Lock()
	defer f.lock.Unlock()

	return len(f.decoders)
}

func (f *fakeDecoderFactory) liveCount() (int, int) {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.live, f.maxLive
}

type fakeRenderer struct {
	lock        sync.Mutex
	sizes       [][2]int
	completions int
	failures    []error
}

func (r *fakeRenderer) NotifyVideoSize(width, height int) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.sizes = append(r.sizes, [2]int{width, height})
}

func (r *fakeRenderer) NotifyCompletion() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.completions++
}

func (r *fakeRenderer) NotifyFailure(err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.failures = append(r.failures, err)
}

func (r *fakeRenderer) lastFailure() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if len(r.failures) == 0 {
		return nil
	}
	return r.failures[len(r.failures)-1]
}

func (r *fakeRenderer) sizeCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.sizes)
}

func (r *fakeRenderer) completionCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.completions
}

type harness struct {
	engine      *Engine
	decoders    *fakeDecoderFactory
	renderer    *fakeRenderer
	coordinator *Coordinator
}

func newHarness(t *testing.T, permissionGranted bool, policy Policy) *harness {
	t.Helper()

	logger := zap.NewNop().Sugar()
	h := &harness{
		engine:   NewEngine(logger, 2),
		decoders: newFakeDecoderFactory(),
		renderer: &fakeRenderer{},
	}

	h.coordinator = NewCoordinator(logger, h.engine, h.engine.Surfaces(), h.decoders.create,
		h.renderer, permissionGranted, policy)

	t.Cleanup(h.engine.Stop)
	return h
}

// frames drives the engine until its mailbox is empty.
func (h *harness) frames() {
	for h.engine.Frame() > 0 {
	}
}

func (h *harness) liveSurfaces() int {
	return h.engine.surfaces.liveCount()
}

func (h *harness) play(t *testing.T, path string) *fakeDecoder {
	t.Helper()

	h.coordinator.StartMovie(path)
	h.frames()
	require.Equal(t, StatePlaying, h.coordinator.State())

	decoder := h.decoders.last()
	require.NotNil(t, decoder)
	return decoder
}
