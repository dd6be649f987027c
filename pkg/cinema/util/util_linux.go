package util

import (
	"os"
	"os/signal"
	"syscall"
)

// setupLifecycleHandler maps SIGUSR1 to pause and SIGUSR2 to resume.
func setupLifecycleHandler() <-chan LifecycleEvent {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)

	events := make(chan LifecycleEvent)
	go func() {
		for sig := range signals {
			if sig == syscall.SIGUSR1 {
				events <- LifecyclePause
			} else {
				events <- LifecycleResume
			}
		}
	}()

	return events
}
