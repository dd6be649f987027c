package cinema

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/omriharel/cinema/pkg/cinema/util"
)

var (
	errNotPrepared = errors.New("decoder not prepared")
	errNotStarted  = errors.New("decoder not started")
	errReleased    = errors.New("decoder released")
)

// HeadlessOptions configures the reference decoder.
type HeadlessOptions struct {
	Width            int
	Height           int
	Duration         time.Duration
	SupportedFormats []string
}

// headlessDecoder is a clock driven decoder that validates the media file,
// reports a fixed video size and plays for a fixed duration. It stands in for
// a platform decoder when none is linked into the binary.
type headlessDecoder struct {
	logger *zap.SugaredLogger
	clock  clockwork.Clock
	opts   HeadlessOptions
	emit   func(Notification)

	lock      sync.Mutex
	path      string
	surface   *Surface
	prepared  bool
	started   bool
	playing   bool
	released  bool
	volume    float32
	remaining time.Duration
	resumedAt time.Time
	timer     clockwork.Timer
	run       int
}

// NewHeadlessDecoderFactory returns a DecoderFactory producing headless decoders.
func NewHeadlessDecoderFactory(logger *zap.SugaredLogger, clock clockwork.Clock, opts HeadlessOptions) DecoderFactory {
	logger = logger.Named("decoder")

	return func(emit func(Notification)) Decoder {
		return &headlessDecoder{
			logger: logger,
			clock:  clock,
			opts:   opts,
			emit:   emit,
			volume: 1.0,
		}
	}
}

func (d *headlessDecoder) Prepare(path string, surface *Surface) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.released {
		return errReleased
	}

	if !util.FileExists(path) {
		return &DecoderError{Code: CodeIO, Err: fmt.Errorf("open %s: %w", path, os.ErrNotExist)}
	}

	format := util.Extension(path)
	if !funk.ContainsString(d.opts.SupportedFormats, format) {
		return &DecoderError{Code: CodeUnsupported, Err: fmt.Errorf("unsupported format %q", format)}
	}

	d.path = path
	d.surface = surface
	d.prepared = true
	d.remaining = d.opts.Duration

	d.logger.Debugw("Prepared media", "path", path, "surface", surface)
	return nil
}

func (d *headlessDecoder) Start() error {
	d.lock.Lock()
	if d.released {
		d.lock.Unlock()
		return errReleased
	}
	if !d.prepared {
		d.lock.Unlock()
		return errNotPrepared
	}

	// always from the beginning
	d.remaining = d.opts.Duration
	d.started = true
	d.play()
	d.lock.Unlock()

	d.emit(SizeKnown(d.opts.Width, d.opts.Height))
	return nil
}

func (d *headlessDecoder) Pause() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.released {
		return errReleased
	}
	if !d.started {
		return errNotStarted
	}
	if !d.playing {
		return nil
	}

	d.timer.Stop()
	d.remaining -= d.clock.Since(d.resumedAt)
	d.playing = false
	d.present()

	d.logger.Debugw("Paused", "remaining", d.remaining)
	return nil
}

func (d *headlessDecoder) Resume() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.released {
		return errReleased
	}
	if !d.started {
		return errNotStarted
	}
	if d.playing {
		return nil
	}

	d.play()
	d.logger.Debugw("Resumed", "remaining", d.remaining)
	return nil
}

func (d *headlessDecoder) SetVolume(volume float32) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.released {
		return errReleased
	}

	d.volume = util.NormalizeScalar(volume)
	return nil
}

func (d *headlessDecoder) Release() {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.released {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.released = true
	d.playing = false

	d.logger.Debugw("Released decoder", "path", d.path)
}

// must be called with the lock held
func (d *headlessDecoder) play() {
	d.resumedAt = d.clock.Now()
	d.playing = true
	d.run++

	run := d.run
	d.timer = d.clock.AfterFunc(d.remaining, func() { d.finish(run) })
	d.present()
}

// must be called with the lock held
func (d *headlessDecoder) present() {
	position := d.opts.Duration - d.remaining
	if d.playing {
		position += d.clock.Since(d.resumedAt)
	}

	if err := d.surface.Present(position); err != nil {
		d.logger.Warnw("Failed to present frame", "position", position, "error", err)
	}
}

// finish fires when run's timer expires; timers stopped too late are ignored
func (d *headlessDecoder) finish(run int) {
	d.lock.Lock()
	if d.released || !d.playing || run != d.run {
		d.lock.Unlock()
		return
	}

	d.remaining = 0
	d.playing = false
	d.present()
	d.lock.Unlock()

	d.logger.Debugw("Reached end of media", "path", d.path)
	d.emit(Completion())
}
