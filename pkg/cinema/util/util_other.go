//go:build !linux

package util

// setupLifecycleHandler has no signal source outside Linux; the tray and the
// remote are the only ways to pause there.
func setupLifecycleHandler() <-chan LifecycleEvent {
	return make(chan LifecycleEvent)
}
