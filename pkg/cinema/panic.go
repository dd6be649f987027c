package cinema

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/omriharel/cinema/pkg/cinema/util"
)

const (
	crashlogFilename        = "cinema-crash-%s.log"
	crashlogTimestampFormat = "2006.01.02-15.04.05"
	crashMessageTemplate    = `-----------------------------------------------------------------
                        cinema crashlog
-----------------------------------------------------------------
Unfortunately, cinema has crashed. This really shouldn't happen!
Please open an issue and attach this error log.
-----------------------------------------------------------------
Time: %s
Session: %s
State: %s
Panic occurred: %s
Stack trace:
%s
-----------------------------------------------------------------
`
)

// recoverFromPanic is deferred at the top of every goroutine the app starts.
func (c *Cinema) recoverFromPanic() {
	if r := recover(); r != nil {
		c.handlePanic(r)
	}
}

// handlePanic writes a crash log, tells the user where it is and exits.
func (c *Cinema) handlePanic(recoverValue interface{}) {
	now := time.Now()
	crashlogPath := filepath.Join(logDirectory, fmt.Sprintf(crashlogFilename, now.Format(crashlogTimestampFormat)))

	if err := util.EnsureDirExists(logDirectory); err != nil {
		panic(fmt.Errorf("create log directory: %w", err))
	}

	if err := os.WriteFile(crashlogPath, c.createCrashLogContent(now, recoverValue), 0644); err != nil {
		panic(fmt.Errorf("write crash log: %w", err))
	}

	c.logger.Errorw("Application panic encountered",
		"crashlogPath", crashlogPath,
		"error", recoverValue)

	c.notifier.Notify("Unexpected crash occurred",
		fmt.Sprintf("Details logged to: %s", crashlogPath))

	c.logger.Errorw("Exiting due to panic", "exitCode", 1)
	c.logger.Sync()
	os.Exit(1)
}

func (c *Cinema) createCrashLogContent(timestamp time.Time, recoverValue interface{}) []byte {
	sessionID, state := "none", "unknown"
	if c.session != nil {
		// the panic may have happened with the session lock held
		sessionID = c.session.ID()
		if snapshot, ok := c.trySnapshot(); ok {
			state = snapshot.State.String()
		}
	}

	return []byte(fmt.Sprintf(crashMessageTemplate,
		timestamp.Format(crashlogTimestampFormat),
		sessionID,
		state,
		recoverValue,
		debug.Stack(),
	))
}

func (c *Cinema) trySnapshot() (Snapshot, bool) {
	if !c.session.lock.TryLock() {
		return Snapshot{}, false
	}
	defer c.session.lock.Unlock()

	return c.session.session.snapshot(), true
}
