package cinema

import (
	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/omriharel/cinema/pkg/cinema/icon"
	"github.com/omriharel/cinema/pkg/cinema/util"
)

const (
	pauseTitle         = "Pause"
	pauseTooltip       = "Pause the movie"
	resumeTitle        = "Resume"
	resumeTooltip      = "Resume the movie"
	restartTitle       = "Restart movie"
	restartTooltip     = "Play the movie again from the beginning"
	allowAccessTitle   = "Allow media access"
	allowAccessTooltip = "Let cinema read your movie files"
	denyAccessTitle    = "Deny media access"
	denyAccessTooltip  = "Keep cinema from reading your movie files"
	editConfigTitle    = "Edit configuration"
	editConfigTooltip  = "Open config file with your editor"
	quitTitle          = "Quit"
	quitTooltip        = "Stop cinema and quit"
)

type trayItems struct {
	pause       *systray.MenuItem
	resume      *systray.MenuItem
	restart     *systray.MenuItem
	allowAccess *systray.MenuItem
	denyAccess  *systray.MenuItem
	editConfig  *systray.MenuItem
	quit        *systray.MenuItem
}

func (c *Cinema) initializeTray(onDone func()) {
	logger := c.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTemplateIcon(icon.CinemaLogo, icon.CinemaLogo)
		systray.SetTitle("cinema")
		systray.SetTooltip("cinema")

		items := trayItems{}

		items.pause = systray.AddMenuItem(pauseTitle, pauseTooltip)
		items.pause.SetIcon(icon.Pause)

		items.resume = systray.AddMenuItem(resumeTitle, resumeTooltip)
		items.resume.SetIcon(icon.Resume)

		items.restart = systray.AddMenuItem(restartTitle, restartTooltip)

		if c.config.RequirePermission {
			systray.AddSeparator()
			items.allowAccess = systray.AddMenuItem(allowAccessTitle, allowAccessTooltip)
			items.denyAccess = systray.AddMenuItem(denyAccessTitle, denyAccessTooltip)
		}

		systray.AddSeparator()
		items.editConfig = systray.AddMenuItem(editConfigTitle, editConfigTooltip)

		if c.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(c.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		items.quit = systray.AddMenuItem(quitTitle, quitTooltip)

		go c.handleTrayActions(logger, items)

		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (c *Cinema) handleTrayActions(logger *zap.SugaredLogger, items trayItems) {
	defer c.recoverFromPanic()

	// nil channels never fire when permission items are absent
	var allowClicked, denyClicked chan struct{}
	if items.allowAccess != nil {
		allowClicked = items.allowAccess.ClickedCh
		denyClicked = items.denyAccess.ClickedCh
	}

	for {
		select {
		case <-items.quit.ClickedCh:
			logger.Info("Quit menu item clicked, stopping")
			c.signalStop()

		case <-items.pause.ClickedCh:
			logger.Info("Pause menu item clicked")
			c.session.Pause()

		case <-items.resume.ClickedCh:
			logger.Info("Resume menu item clicked")
			c.session.Resume()

		case <-items.restart.ClickedCh:
			logger.Info("Restart menu item clicked, starting movie again")
			c.session.StartMovie(c.moviePath)

		case <-allowClicked:
			logger.Info("Media access allowed from tray")
			c.session.OnPermissionResult(true)

		case <-denyClicked:
			logger.Info("Media access denied from tray")
			c.session.OnPermissionResult(false)

		case <-items.editConfig.ClickedCh:
			logger.Info("Edit config menu item clicked, opening config for editing")

			if err := util.OpenExternal(logger, getEditor(), c.config.configFilepath); err != nil {
				logger.Warnw("Failed to open config file for editing", "error", err)
			}
		}
	}
}

func getEditor() string {
	if util.Linux() {
		return "xdg-open"
	}
	return "notepad.exe"
}

func (c *Cinema) stopTray() {
	c.logger.Debug("Quitting tray")
	systray.Quit()
}
