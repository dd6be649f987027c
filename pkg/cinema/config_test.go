package cinema

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotifier struct {
	lock   sync.Mutex
	titles []string
}

func (n *fakeNotifier) Notify(title string, _ string) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.titles = append(n.titles, title)
}

func (n *fakeNotifier) last() string {
	n.lock.Lock()
	defer n.lock.Unlock()

	if len(n.titles) == 0 {
		return ""
	}
	return n.titles[len(n.titles)-1]
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func loadConfig(t *testing.T, path string) (*CanonicalConfig, *fakeNotifier, error) {
	t.Helper()

	notifier := &fakeNotifier{}
	cc, err := NewConfig(zap.NewNop().Sugar(), notifier, path)
	require.NoError(t, err)

	return cc, notifier, cc.Load()
}

func TestConfig_Defaults(t *testing.T) {
	cc, _, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cc.MoviePath)
	assert.True(t, cc.RequirePermission)
	assert.Equal(t, DefaultPolicy(), cc.Policy)
	assert.Equal(t, defaultMaxSurfaces, cc.MaxSurfaces)
	assert.Equal(t, 1920, cc.Decoder.Width)
	assert.Equal(t, 1080, cc.Decoder.Height)
	assert.Equal(t, defaultDecoderDuration, cc.Decoder.Duration)
	assert.Equal(t, defaultSupportedFormats, cc.Decoder.SupportedFormats)
	assert.Empty(t, cc.Remote.COMPort)
	assert.Equal(t, defaultBaudRate, cc.Remote.BaudRate)
	assert.True(t, cc.Notifications)
}

func TestConfig_Load(t *testing.T) {
	path := writeConfig(t, `
movie_path: ~/Movies/cinema.mp4
require_permission: false
retain_surface_on_completion: true
loop_on_completion: true
volume: 0.5
max_surfaces: 4
decoder:
  width: 3840
  height: 2160
  duration: 90s
  supported_formats: [".MP4", "mkv", "mkv", ""]
remote:
  com_port: /dev/ttyUSB0
  baud_rate: 115200
notifications: false
`)

	cc, _, err := loadConfig(t, path)
	require.NoError(t, err)

	assert.Equal(t, "~/Movies/cinema.mp4", cc.MoviePath)
	assert.False(t, cc.RequirePermission)
	assert.Equal(t, Policy{RetainSurfaceOnCompletion: true, LoopOnCompletion: true, Volume: 0.5}, cc.Policy)
	assert.Equal(t, 4, cc.MaxSurfaces)
	assert.Equal(t, HeadlessOptions{
		Width:            3840,
		Height:           2160,
		Duration:         90 * time.Second,
		SupportedFormats: []string{"mp4", "mkv"},
	}, cc.Decoder)
	assert.Equal(t, ConnectionInfo{COMPort: "/dev/ttyUSB0", BaudRate: 115200}, cc.Remote)
	assert.False(t, cc.Notifications)
}

func TestConfig_InvalidValuesFallBack(t *testing.T) {
	path := writeConfig(t, `
volume: 1.5
max_surfaces: 0
decoder:
  width: -1
  duration: -5s
  supported_formats: [""]
remote:
  baud_rate: 0
`)

	cc, _, err := loadConfig(t, path)
	require.NoError(t, err)

	assert.Equal(t, float32(1), cc.Policy.Volume)
	assert.Equal(t, defaultMaxSurfaces, cc.MaxSurfaces)
	assert.Equal(t, 1920, cc.Decoder.Width)
	assert.Equal(t, defaultDecoderDuration, cc.Decoder.Duration)
	assert.Equal(t, defaultSupportedFormats, cc.Decoder.SupportedFormats)
	assert.Equal(t, defaultBaudRate, cc.Remote.BaudRate)
}

func TestConfig_MalformedFile(t *testing.T) {
	path := writeConfig(t, "volume: [unterminated\n")

	_, notifier, err := loadConfig(t, path)
	assert.Error(t, err)
	assert.Equal(t, "Invalid configuration format!", notifier.last())
}

func TestConfig_ReloadConsumersNeverBlock(t *testing.T) {
	cc, _, err := loadConfig(t, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	cc.SubscribeToChanges()
	cc.onConfigReloaded()

	cc.StopWatchingConfigFile()
	cc.StopWatchingConfigFile()
}

func TestConfig_WatchReloads(t *testing.T) {
	path := writeConfig(t, "volume: 0.5\n")

	cc, notifier, err := loadConfig(t, path)
	require.NoError(t, err)

	reloaded := cc.SubscribeToChanges()
	done := make(chan struct{})
	go func() {
		defer close(done)
		cc.WatchConfigFileChanges()
	}()
	defer func() {
		cc.StopWatchingConfigFile()
		<-done
	}()

	// reloads right after the watcher starts are debounced
	time.Sleep(minTimeBetweenReloadAttempts + 100*time.Millisecond)

	for attempt := 0; attempt < 5; attempt++ {
		require.NoError(t, os.WriteFile(path, []byte("volume: 0.25\n"), 0644))

		select {
		case <-reloaded:
			assert.Equal(t, float32(0.25), cc.Policy.Volume)
			assert.Equal(t, "Configuration reloaded!", notifier.last())
			return
		case <-time.After(minTimeBetweenReloadAttempts + 500*time.Millisecond):
		}
	}

	t.Fatal("config was not reloaded")
}
