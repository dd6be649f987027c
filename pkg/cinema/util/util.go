package util

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// EnsureDirExists creates the given directory path if it doesn't already exist.
func EnsureDirExists(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("ensure directory exists (%s): %w", path, err)
	}
	return nil
}

// FileExists checks if a file exists and is not a directory.
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirReadable reports whether the directory holding path can be listed.
func DirReadable(path string) bool {
	f, err := os.Open(filepath.Dir(path))
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	return err == nil || errors.Is(err, io.EOF)
}

// ResolveMediaPath turns a user supplied movie path into an absolute one.
func ResolveMediaPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("resolve media path: empty path")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve media path (%s): %w", path, err)
	}
	return abs, nil
}

// Extension returns the lowercase file extension of path without the dot.
func Extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Linux returns true if we're running on Linux.
func Linux() bool {
	return runtime.GOOS == "linux"
}

// SetupCloseHandler creates a listener on a new goroutine that will notify
// the program if it receives an interrupt signal from the OS.
func SetupCloseHandler() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}

// LifecycleEvent is an app level pause/resume request coming from the OS.
type LifecycleEvent int

const (
	// LifecyclePause asks the app to pause playback.
	LifecyclePause LifecycleEvent = iota
	// LifecycleResume asks the app to resume playback.
	LifecycleResume
)

// SetupLifecycleHandler returns a channel of pause/resume requests delivered
// through OS signals. On platforms without such signals the channel never fires.
func SetupLifecycleHandler() <-chan LifecycleEvent {
	return setupLifecycleHandler()
}

// OpenExternal spawns a detached process (e.g., opening a file or URL) with the given command and argument.
func OpenExternal(logger *zap.SugaredLogger, cmd string, arg string) error {
	command := createExternalCommand(cmd, arg)
	if err := command.Run(); err != nil {
		logger.Warnw("Failed to spawn detached process", "command", cmd, "argument", arg, "error", err)
		return fmt.Errorf("spawn detached proc: %w", err)
	}
	return nil
}

// NormalizeScalar clamps v to [0, 1] and trims it to 2 decimal places of precision (e.g., 0.15442 -> 0.15).
// Used for normalizing playback volume levels.
func NormalizeScalar(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float32(math.Floor(float64(v)*100) / 100.0)
}

func createExternalCommand(cmd string, arg string) *exec.Cmd {
	if Linux() {
		return exec.Command("/bin/bash", "-c", fmt.Sprintf("%s %s", cmd, arg))
	}
	return exec.Command("cmd.exe", "/C", "start", "/b", cmd, arg)
}
