package cinema

//go:generate mockgen -source=decoder.go -destination=mocks/mock_decoder.go -package=mocks

// Decoder is a platform media decoder bound to one surface. All methods are
// invoked on the engine context. Asynchronous events go through the emit
// function the decoder was created with; emit may also be called
// synchronously from inside Prepare and Start, which run without the
// coordinator lock.
type Decoder interface {
	// Prepare binds the decoder to path and surface. A returned error means
	// the media could not be opened; wrap it in a *DecoderError to attach a code.
	Prepare(path string, surface *Surface) error

	// Start begins playback from position zero with looping disabled.
	Start() error

	// Pause pauses playback, keeping the surface bound.
	Pause() error

	// Resume continues playback after Pause.
	Resume() error

	// SetVolume sets the output volume in the [0, 1] range.
	SetVolume(volume float32) error

	// Release frees the decoder. No notifications are emitted afterwards.
	Release()
}

// DecoderFactory creates a decoder whose notifications are reported via emit.
// It is called with the coordinator lock held and must not call emit itself.
type DecoderFactory func(emit func(Notification)) Decoder

// Renderer receives outbound playback events. Calls are made on the engine
// context.
type Renderer interface {
	// NotifyVideoSize reports the decoded video dimensions.
	NotifyVideoSize(width, height int)

	// NotifyCompletion reports that the movie played to the end.
	NotifyCompletion()

	// NotifyFailure reports why the session moved to the failed state or
	// gave up waiting for permission.
	NotifyFailure(err error)
}
