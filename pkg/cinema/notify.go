package cinema

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/omriharel/cinema/pkg/cinema/icon"
	"github.com/omriharel/cinema/pkg/cinema/util"
)

// Notifier provides a generic interface for sending notifications.
type Notifier interface {
	Notify(title string, message string)
}

// ToastNotifier sends desktop toast notifications.
type ToastNotifier struct {
	logger  *zap.SugaredLogger
	enabled bool
}

// NewToastNotifier creates a new instance of ToastNotifier.
func NewToastNotifier(logger *zap.SugaredLogger) (*ToastNotifier, error) {
	logger = logger.Named("notifier")
	logger.Debug("Created toast notifier instance")

	return &ToastNotifier{logger: logger, enabled: true}, nil
}

// SetEnabled turns toasts on or off; disabled toasts are only logged.
func (tn *ToastNotifier) SetEnabled(enabled bool) {
	tn.enabled = enabled
}

// Notify sends a toast notification, creating the icon file on first use.
func (tn *ToastNotifier) Notify(title, message string) {
	if !tn.enabled {
		tn.logger.Debugw("Toast notifications disabled, not sending", "title", title, "message", message)
		return
	}

	appIconPath := filepath.Join(os.TempDir(), "cinema.ico")

	if err := tn.ensureIconFile(appIconPath); err != nil {
		tn.logger.Errorw("Failed to prepare toast notification icon", "error", err)
		return
	}

	tn.logger.Infow("Sending toast notification", "title", title, "message", message)

	if err := beeep.Notify(title, message, appIconPath); err != nil {
		tn.logger.Errorw("Failed to send toast notification", "error", err)
	}
}

func (tn *ToastNotifier) ensureIconFile(path string) error {
	if util.FileExists(path) {
		return nil
	}

	tn.logger.Debugw("Cinema icon file missing, creating", "path", path)

	if err := os.WriteFile(path, icon.CinemaLogo, 0644); err != nil {
		return err
	}

	tn.logger.Debugw("Successfully created toast notification icon", "path", path)
	return nil
}

// failureNotifier turns playback failures into toasts. Size and completion
// events are of no interest to the user.
type failureNotifier struct {
	notifier Notifier
}

func newFailureNotifier(notifier Notifier) Renderer {
	return failureNotifier{notifier: notifier}
}

func (f failureNotifier) NotifyVideoSize(int, int) {}

func (f failureNotifier) NotifyCompletion() {}

func (f failureNotifier) NotifyFailure(err error) {
	var failure *PlaybackError
	if !errors.As(err, &failure) {
		f.notifier.Notify("Playback failed!", err.Error())
		return
	}

	switch {
	case errors.Is(failure, ErrPermissionDenied):
		f.notifier.Notify("Media access denied!",
			"Allow access to your movies from the tray menu and start the movie again.")
	case errors.Is(failure, ErrSurfaceCreationFailed):
		f.notifier.Notify("Cannot show the movie!", "The renderer could not create a video surface.")
	case errors.Is(failure, ErrDecoderPrepareFailed):
		f.notifier.Notify("Cannot open the movie!", failure.Error())
	default:
		f.notifier.Notify("Playback stopped!", failure.Error())
	}
}
