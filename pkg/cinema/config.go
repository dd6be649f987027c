package cinema

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/omriharel/cinema/pkg/cinema/util"
)

// CanonicalConfig provides centralized access to configuration fields
type CanonicalConfig struct {
	MoviePath         string
	RequirePermission bool
	Policy            Policy
	MaxSurfaces       int
	Decoder           HeadlessOptions
	Remote            ConnectionInfo
	Notifications     bool

	logger             *zap.SugaredLogger
	notifier           Notifier
	configFilepath     string
	stopWatcherChannel chan struct{}

	reloadConsumers []chan bool

	userConfig *viper.Viper
}

// ConnectionInfo groups serial port settings of the hardware remote
type ConnectionInfo struct {
	COMPort  string
	BaudRate int
}

const (
	defaultConfigFilepath = "config.yaml"

	configType = "yaml"

	configKeyMoviePath         = "movie_path"
	configKeyRequirePermission = "require_permission"
	configKeyRetainSurface     = "retain_surface_on_completion"
	configKeyLoop              = "loop_on_completion"
	configKeyVolume            = "volume"
	configKeyMaxSurfaces       = "max_surfaces"
	configKeyDecoderWidth      = "decoder.width"
	configKeyDecoderHeight     = "decoder.height"
	configKeyDecoderDuration   = "decoder.duration"
	configKeyDecoderFormats    = "decoder.supported_formats"
	configKeyCOMPort           = "remote.com_port"
	configKeyBaudRate          = "remote.baud_rate"
	configKeyNotifications     = "notifications"

	defaultBaudRate        = 9600
	defaultDecoderDuration = 2 * time.Minute

	minTimeBetweenReloadAttempts = time.Millisecond * 500
	delayBetweenEventAndReload   = time.Millisecond * 50
)

var defaultSupportedFormats = []string{"mp4", "m4v", "mkv", "webm", "mov"}

// NewConfig initializes the configuration manager. An empty path means
// config.yaml in the working directory.
func NewConfig(logger *zap.SugaredLogger, notifier Notifier, path string) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	if path == "" {
		path = defaultConfigFilepath
	}

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		configFilepath:     path,
		reloadConsumers:    make([]chan bool, 0),
		stopWatcherChannel: make(chan struct{}),
	}

	cc.userConfig = initializeViper(path, map[string]interface{}{
		configKeyMoviePath:         "",
		configKeyRequirePermission: true,
		configKeyRetainSurface:     false,
		configKeyLoop:              false,
		configKeyVolume:            1.0,
		configKeyMaxSurfaces:       defaultMaxSurfaces,
		configKeyDecoderWidth:      1920,
		configKeyDecoderHeight:     1080,
		configKeyDecoderDuration:   "2m",
		configKeyDecoderFormats:    defaultSupportedFormats,
		configKeyCOMPort:           "",
		configKeyBaudRate:          defaultBaudRate,
		configKeyNotifications:     true,
	})

	logger.Debugw("Created configuration instance", "path", path)
	return cc, nil
}

// initializeViper creates and configures a Viper instance
func initializeViper(path string, defaults map[string]interface{}) *viper.Viper {
	config := viper.New()
	config.SetConfigFile(path)
	config.SetConfigType(configType)

	for key, value := range defaults {
		config.SetDefault(key, value)
	}

	return config
}

// Load reads and validates the configuration file. A missing file leaves
// every setting at its default.
func (cc *CanonicalConfig) Load() error {
	cc.logger.Debugw("Loading configuration", "path", cc.configFilepath)

	if !util.FileExists(cc.configFilepath) {
		cc.logger.Infow("Configuration file not found, using defaults", "path", cc.configFilepath)
		return cc.populateFromVipers()
	}

	if err := cc.userConfig.ReadInConfig(); err != nil {
		return cc.handleConfigError(err)
	}

	return cc.populateFromVipers()
}

// SubscribeToChanges returns a channel that fires after every successful reload
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges reloads the configuration whenever the file changes,
// until StopWatchingConfigFile is called
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	cc.logger.Debugw("Starting to watch config file for changes", "path", cc.configFilepath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cc.logger.Warnw("Failed to create config file watcher", "error", err)
		return
	}
	defer watcher.Close()

	// watch the directory, editors often replace the file instead of writing it
	if err := watcher.Add(filepath.Dir(cc.configFilepath)); err != nil {
		cc.logger.Warnw("Failed to watch config directory", "error", err)
		return
	}

	configName := filepath.Clean(cc.configFilepath)
	lastAttemptedReload := time.Now()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != configName || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}

			now := time.Now()
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).After(now) {
				continue
			}
			lastAttemptedReload = now

			// let the editor finish writing
			time.Sleep(delayBetweenEventAndReload)

			cc.logger.Debugw("Config file modified, attempting reload", "event", event)
			if err := cc.Load(); err != nil {
				cc.logger.Warnw("Failed to reload config file", "error", err)
				continue
			}

			cc.logger.Info("Reloaded config successfully")
			cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")
			cc.onConfigReloaded()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			cc.logger.Warnw("Config file watcher error", "error", err)

		case <-cc.stopWatcherChannel:
			cc.logger.Debug("Stopping config file watcher")
			return
		}
	}
}

// StopWatchingConfigFile ends WatchConfigFileChanges
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	select {
	case <-cc.stopWatcherChannel:
	default:
		close(cc.stopWatcherChannel)
	}
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		select {
		case consumer <- true:
		default:
			cc.logger.Debug("Config reload consumer busy, skipping")
		}
	}
}

// handleConfigError processes errors during config file loading
func (cc *CanonicalConfig) handleConfigError(err error) error {
	cc.logger.Warnw("Failed to load configuration", "path", cc.configFilepath, "error", err)

	if strings.Contains(err.Error(), "yaml:") {
		cc.notifier.Notify("Invalid configuration format!",
			"Ensure the YAML file is properly formatted.")
	} else {
		cc.notifier.Notify("Error loading configuration!", "Check logs for more details.")
	}
	return fmt.Errorf("read config: %w", err)
}

// populateFromVipers reads configuration fields into structured fields
func (cc *CanonicalConfig) populateFromVipers() error {
	cc.MoviePath = cc.userConfig.GetString(configKeyMoviePath)
	cc.RequirePermission = cc.userConfig.GetBool(configKeyRequirePermission)
	cc.Policy = Policy{
		RetainSurfaceOnCompletion: cc.userConfig.GetBool(configKeyRetainSurface),
		LoopOnCompletion:          cc.userConfig.GetBool(configKeyLoop),
		Volume:                    cc.validateVolume(cc.userConfig.GetFloat64(configKeyVolume)),
	}
	cc.MaxSurfaces = cc.validatePositive(configKeyMaxSurfaces, cc.userConfig.GetInt(configKeyMaxSurfaces), defaultMaxSurfaces)
	cc.Decoder = HeadlessOptions{
		Width:            cc.validatePositive(configKeyDecoderWidth, cc.userConfig.GetInt(configKeyDecoderWidth), 1920),
		Height:           cc.validatePositive(configKeyDecoderHeight, cc.userConfig.GetInt(configKeyDecoderHeight), 1080),
		Duration:         cc.validateDuration(cc.userConfig.GetDuration(configKeyDecoderDuration)),
		SupportedFormats: normalizeFormats(cc.userConfig.GetStringSlice(configKeyDecoderFormats)),
	}
	if len(cc.Decoder.SupportedFormats) == 0 {
		cc.logger.Warnw("No supported formats configured, using defaults", "defaultValue", defaultSupportedFormats)
		cc.Decoder.SupportedFormats = defaultSupportedFormats
	}
	cc.Remote = ConnectionInfo{
		COMPort:  cc.userConfig.GetString(configKeyCOMPort),
		BaudRate: cc.validatePositive(configKeyBaudRate, cc.userConfig.GetInt(configKeyBaudRate), defaultBaudRate),
	}
	cc.Notifications = cc.userConfig.GetBool(configKeyNotifications)

	cc.logger.Debugw("Configuration populated successfully", "config", cc)
	return nil
}

func (cc *CanonicalConfig) validateVolume(volume float64) float32 {
	normalized := util.NormalizeScalar(float32(volume))
	if float64(normalized) != volume {
		cc.logger.Debugw("Volume normalized", "configured", volume, "applied", normalized)
	}
	return normalized
}

func (cc *CanonicalConfig) validateDuration(duration time.Duration) time.Duration {
	if duration > 0 {
		return duration
	}
	cc.logger.Warnw("Invalid decoder duration specified, using default", "invalidValue", duration, "defaultValue", defaultDecoderDuration)
	return defaultDecoderDuration
}

func (cc *CanonicalConfig) validatePositive(key string, value int, fallback int) int {
	if value > 0 {
		return value
	}
	cc.logger.Warnw("Invalid value specified, using default", "key", key, "invalidValue", value, "defaultValue", fallback)
	return fallback
}

// normalizeFormats lowercases formats and strips leading dots and duplicates
func normalizeFormats(formats []string) []string {
	cleaned := funk.Map(formats, func(f string) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(f)), ".")
	}).([]string)

	return funk.UniqString(funk.FilterString(cleaned, func(f string) bool {
		return f != ""
	}))
}

func (cc *CanonicalConfig) String() string {
	return fmt.Sprintf("<movie: %q, permission: %t, policy: %+v, surfaces: %d, remote: %q>",
		cc.MoviePath, cc.RequirePermission, cc.Policy, cc.MaxSurfaces, cc.Remote.COMPort)
}
