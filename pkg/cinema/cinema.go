// Package cinema plays a movie onto a render engine's video surface, keeping
// the playback session consistent while it is driven from both the engine and
// asynchronous UI, permission and decoder events.
package cinema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/omriharel/cinema/pkg/cinema/util"
)

const (
	// EnvNoTray disables the tray icon when set.
	EnvNoTray = "CINEMA_NO_TRAY_ICON"
)

// Options are the command line settings.
type Options struct {
	ConfigPath string
	MoviePath  string
	NoTray     bool
	Verbose    bool
}

// Cinema manages the main application components.
type Cinema struct {
	logger   *zap.SugaredLogger
	notifier *ToastNotifier
	config   *CanonicalConfig
	engine   *Engine
	screen   *Screen
	session  *Coordinator
	remote   *RemoteIO
	clock    clockwork.Clock

	opts      Options
	moviePath string
	version   string

	stopChannel chan bool
	cancel      context.CancelFunc
	group       *errgroup.Group

	// app lifecycle and headset state, touched from several goroutines
	lifecycleLock      sync.Mutex
	running            bool
	wasPausedOnUnmount bool
}

// NewCinema creates a new Cinema instance.
func NewCinema(logger *zap.SugaredLogger, opts Options) (*Cinema, error) {
	logger = logger.Named("cinema")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create notifier", "error", err)
		return nil, fmt.Errorf("create notifier: %w", err)
	}

	config, err := NewConfig(logger, notifier, opts.ConfigPath)
	if err != nil {
		logger.Errorw("Failed to create configuration", "error", err)
		return nil, fmt.Errorf("create configuration: %w", err)
	}

	remote, err := NewRemoteIO(nil, logger)
	if err != nil {
		logger.Errorw("Failed to initialize remote", "error", err)
		return nil, fmt.Errorf("initialize remote: %w", err)
	}

	c := &Cinema{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		remote:      remote,
		clock:       clockwork.NewRealClock(),
		opts:        opts,
		stopChannel: make(chan bool, 1),
		running:     true,
	}

	remote.SetParent(c)

	logger.Debug("Cinema instance created successfully")
	return c, nil
}

// Initialize loads the configuration, builds the playback pipeline and runs
// the application until it is asked to stop.
func (c *Cinema) Initialize() error {
	c.logger.Debug("Initializing cinema")

	if err := c.config.Load(); err != nil {
		c.logger.Errorw("Failed to load configuration", "error", err)
		return fmt.Errorf("load configuration: %w", err)
	}
	c.notifier.SetEnabled(c.config.Notifications)

	moviePath := c.opts.MoviePath
	if moviePath == "" {
		moviePath = c.config.MoviePath
	}

	resolved, err := util.ResolveMediaPath(moviePath)
	if err != nil {
		c.logger.Errorw("No movie to play", "error", err)
		return fmt.Errorf("resolve movie: %w", err)
	}
	c.moviePath = resolved

	c.engine = NewEngine(c.logger, c.config.MaxSurfaces)
	c.screen = NewScreen(c.logger)
	c.session = NewCoordinator(
		c.logger,
		c.engine,
		c.engine.Surfaces(),
		NewHeadlessDecoderFactory(c.logger, c.clock, c.config.Decoder),
		MultiRenderer(c.screen, newFailureNotifier(c.notifier)),
		!c.config.RequirePermission,
		c.config.Policy,
	)

	c.engine.SetFrameHook(func(ec *EngineContext) {
		c.screen.Latch(ec, c.session.Surface(ec))
	})

	if c.trayDisabled() {
		c.logger.Debug("Running without tray icon")
		c.setupInterruptHandler()
		c.run()
	} else {
		c.setupInterruptHandler()
		c.initializeTray(c.run)
	}

	return nil
}

// SetVersion sets the application version for display in the tray menu.
func (c *Cinema) SetVersion(version string) {
	c.version = version
}

// Verbose indicates whether the application runs in verbose mode.
func (c *Cinema) Verbose() bool {
	return c.opts.Verbose
}

func (c *Cinema) trayDisabled() bool {
	return c.opts.NoTray || os.Getenv(EnvNoTray) != ""
}

func (c *Cinema) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		c.logger.Debugw("Interrupt received", "signal", signal)
		c.signalStop()
	}()
}

// run starts the engine and event loops, kicks off the movie and blocks until
// stop is signalled. In tray mode it runs from the tray's ready callback and
// must not block it, so the wait happens on its own goroutine.
func (c *Cinema) run() {
	c.logger.Info("Run loop starting")

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	c.cancel = cancel
	c.group = group

	group.Go(func() error {
		defer c.recoverFromPanic()
		return c.engine.Run(ctx)
	})

	group.Go(func() error {
		defer c.recoverFromPanic()
		c.config.WatchConfigFileChanges()
		return nil
	})

	group.Go(func() error {
		defer c.recoverFromPanic()
		c.watchLifecycle(ctx)
		return nil
	})

	group.Go(func() error {
		defer c.recoverFromPanic()
		c.watchConfigReloads(ctx)
		return nil
	})

	if c.remote.Enabled() {
		commands := c.remote.SubscribeToCommands()
		group.Go(func() error {
			defer c.recoverFromPanic()
			c.watchRemote(ctx, commands)
			return nil
		})

		c.remote.setupOnConfigReload()
		if err := c.remote.Start(); err != nil {
			c.handleRemoteError(err)
		}
	}

	c.startMovie()

	wait := func() {
		<-c.stopChannel
		c.logger.Debug("Stop signal received")

		if err := c.stop(); err != nil {
			c.logger.Warnw("Error during shutdown", "error", err)
			os.Exit(1)
		}

		os.Exit(0)
	}

	if c.trayDisabled() {
		wait()
	} else {
		go wait()
	}
}

// startMovie asks for the movie to play and, without a tray to click on,
// answers the permission request from the file system.
func (c *Cinema) startMovie() {
	c.session.StartMovie(c.moviePath)

	if !c.config.RequirePermission || !c.trayDisabled() {
		return
	}

	granted := util.DirReadable(c.moviePath)
	c.logger.Infow("Checked storage access", "path", c.moviePath, "granted", granted)
	c.session.OnPermissionResult(granted)
}

func (c *Cinema) watchLifecycle(ctx context.Context) {
	events := util.SetupLifecycleHandler()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			switch event {
			case util.LifecyclePause:
				c.appPaused()
			case util.LifecycleResume:
				c.appResumed()
			}
		}
	}
}

func (c *Cinema) watchConfigReloads(ctx context.Context) {
	reloaded := c.config.SubscribeToChanges()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reloaded:
			c.logger.Info("Detected config reload, applying playback policy")
			c.notifier.SetEnabled(c.config.Notifications)
			c.session.SetPolicy(c.config.Policy)
		}
	}
}

func (c *Cinema) watchRemote(ctx context.Context, commands chan RemoteCommand) {
	for {
		select {
		case <-ctx.Done():
			return
		case command := <-commands:
			c.handleRemoteCommand(command)
		}
	}
}

func (c *Cinema) handleRemoteCommand(command RemoteCommand) {
	switch command {
	case RemoteToggle:
		c.session.TogglePause()
	case RemotePause:
		c.session.Pause()
	case RemoteResume:
		c.session.Resume()
	case RemoteRestart:
		c.session.StartMovie(c.moviePath)
	case RemoteMount:
		c.headsetMounted()
	case RemoteUnmount:
		c.headsetUnmounted()
	}
}

// appPaused pauses playback when the app goes to the background.
func (c *Cinema) appPaused() {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()

	c.logger.Debug("App paused")
	if c.running {
		c.session.Pause()
	}
	c.running = false
}

// appResumed resumes playback when the app comes back.
func (c *Cinema) appResumed() {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()

	c.logger.Debug("App resumed")
	c.running = true
	c.session.Resume()
}

// headsetUnmounted pauses and remembers whether the movie was already paused.
func (c *Cinema) headsetUnmounted() {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()

	c.wasPausedOnUnmount = c.session.State() == StatePaused
	c.session.Pause()
}

// headsetMounted resumes unless the user had paused before taking it off.
func (c *Cinema) headsetMounted() {
	c.lifecycleLock.Lock()
	defer c.lifecycleLock.Unlock()

	if !c.wasPausedOnUnmount {
		c.session.Resume()
	}
}

func (c *Cinema) handleRemoteError(err error) {
	switch {
	case errors.Is(err, os.ErrPermission):
		c.logger.Warnw("Serial port busy", "comPort", c.config.Remote.COMPort)
		c.notifier.Notify("Remote port busy!",
			"Close other applications using the port and try again.")
	case errors.Is(err, os.ErrNotExist):
		c.logger.Warnw("Invalid serial port configuration", "comPort", c.config.Remote.COMPort)
		c.notifier.Notify("Invalid remote port!",
			"Ensure the correct port is set in the configuration.")
	default:
		c.logger.Warnw("Unknown error during remote start", "error", err)
	}
}

func (c *Cinema) signalStop() {
	c.logger.Debug("Sending stop signal")

	select {
	case c.stopChannel <- true:
	default:
	}
}

func (c *Cinema) stop() error {
	c.logger.Info("Shutting down cinema")

	c.session.Close()
	c.engine.Stop()
	c.config.StopWatchingConfigFile()
	c.remote.Stop()
	c.cancel()

	if err := c.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Errorw("Background loop failed", "error", err)
		return fmt.Errorf("wait for background loops: %w", err)
	}

	if !c.trayDisabled() {
		c.stopTray()
	}
	c.logger.Sync()
	return nil
}
