package cinema

import (
	"fmt"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

// transitions lists every state change the session may make. Completed and
// Failed fall back to Idle implicitly: StartMovie treats them like Idle.
var transitions = map[State][]State{
	StateIdle:               {StateAwaitingPermission, StatePreparing},
	StateAwaitingPermission: {StateAwaitingPermission, StatePreparing, StateIdle},
	StatePreparing:          {StatePreparing, StatePlaying, StateCompleted, StateFailed, StateAwaitingPermission, StateIdle},
	StatePlaying:            {StatePreparing, StatePaused, StateCompleted, StateFailed, StateAwaitingPermission},
	StatePaused:             {StatePreparing, StatePlaying, StateCompleted, StateFailed, StateAwaitingPermission},
	StateCompleted:          {StateIdle, StateAwaitingPermission, StatePreparing},
	StateFailed:             {StateIdle, StateAwaitingPermission, StatePreparing},
}

// released holds resources taken away from the session. They are released on
// the engine context, never while the coordinator lock is held.
type released struct {
	decoder Decoder
	surface *Surface
}

func (r released) empty() bool {
	return r.decoder == nil && r.surface == nil
}

// playbackSession is the session state machine. It is not safe for concurrent
// use; the coordinator serialises every call.
type playbackSession struct {
	logger *zap.SugaredLogger

	state             State
	epoch             uint64
	mediaPath         string
	permissionGranted bool

	surface *Surface
	decoder Decoder

	videoWidth  int
	videoHeight int
	lastErr     error
	closed      bool
}

func newPlaybackSession(logger *zap.SugaredLogger, permissionGranted bool) *playbackSession {
	return &playbackSession{
		logger:            logger,
		state:             StateIdle,
		permissionGranted: permissionGranted,
	}
}

func (s *playbackSession) moveTo(to State) {
	if !funk.Contains(transitions[s.state], to) {
		// every caller checks the source state first, so this is a bug
		panic(fmt.Sprintf("illegal session transition %s -> %s", s.state, to))
	}

	s.logger.Debugw("Session state changed", "from", s.state, "to", to, "epoch", s.epoch)
	s.state = to
}

// detach takes the decoder, and the surface unless keepSurface, away from the session.
func (s *playbackSession) detach(keepSurface bool) released {
	r := released{decoder: s.decoder}
	s.decoder = nil

	if !keepSurface {
		r.surface = s.surface
		s.surface = nil
	}

	return r
}

// start records path and either defers on permission or begins a new epoch.
// It returns whether surface creation should be scheduled and whatever the
// previous attempt still held.
func (s *playbackSession) start(path string) (bool, released) {
	s.mediaPath = path
	old := s.detach(false)

	if !s.permissionGranted {
		s.moveTo(StateAwaitingPermission)
		return false, old
	}

	s.beginEpoch()
	return true, old
}

func (s *playbackSession) beginEpoch() {
	s.epoch++
	s.videoWidth, s.videoHeight = 0, 0
	s.lastErr = nil
	s.moveTo(StatePreparing)
}

// permissionResult records the grant. It returns whether a deferred start
// should now be scheduled, and whether a pending or preparing attempt was
// dropped along with whatever it already held. A running movie keeps playing.
func (s *playbackSession) permissionResult(granted bool) (begin bool, denied bool, old released) {
	s.permissionGranted = granted

	switch {
	case s.state == StateAwaitingPermission && granted:
		s.beginEpoch()
		return true, false, released{}
	case s.state == StateAwaitingPermission, s.state == StatePreparing && !granted:
		s.lastErr = &PlaybackError{Kind: ErrPermissionDenied, Path: s.mediaPath}
		s.moveTo(StateIdle)
		return false, true, s.detach(false)
	}

	return false, false, released{}
}

// current reports whether a prepare task for epoch may still create or keep
// resources. No decoder is ever created without storage permission.
func (s *playbackSession) current(epoch uint64) bool {
	return !s.closed && s.permissionGranted && epoch == s.epoch && s.state == StatePreparing
}

// surfaceFailed moves a preparing session to Failed.
func (s *playbackSession) surfaceFailed(err error) *PlaybackError {
	failure := &PlaybackError{Kind: ErrSurfaceCreationFailed, Path: s.mediaPath}
	s.lastErr = failure
	s.moveTo(StateFailed)
	s.logger.Warnw("Failed to create video surface", "path", s.mediaPath, "error", err)
	return failure
}

// prepareFailed moves a preparing session to Failed and hands back its resources.
func (s *playbackSession) prepareFailed(err error) (*PlaybackError, released) {
	failure := &PlaybackError{Kind: ErrDecoderPrepareFailed, Code: codeOf(err), Path: s.mediaPath}
	s.lastErr = failure
	s.moveTo(StateFailed)
	s.logger.Warnw("Failed to prepare decoder", "path", s.mediaPath, "code", failure.Code, "error", err)
	return failure, s.detach(false)
}

// started completes preparation once the decoder bound to this epoch is running.
func (s *playbackSession) started(decoder Decoder) bool {
	if s.decoder != decoder || s.state != StatePreparing {
		return false
	}

	s.moveTo(StatePlaying)
	return true
}

func (s *playbackSession) pause() (Decoder, bool) {
	if s.state != StatePlaying {
		return nil, false
	}

	s.moveTo(StatePaused)
	return s.decoder, true
}

func (s *playbackSession) resume() (Decoder, bool) {
	if s.state != StatePaused {
		return nil, false
	}

	s.moveTo(StatePlaying)
	return s.decoder, true
}

func (s *playbackSession) sizeKnown(width, height int) bool {
	if !s.state.active() {
		return false
	}
	if width == 0 || height == 0 {
		s.logger.Warnw("Ignoring zero video size, no video track or size not determined yet",
			"width", width, "height", height)
		return false
	}

	s.videoWidth, s.videoHeight = width, height
	return true
}

// complete handles end of playback. The surface stays with the session when
// retainSurface is set and is dropped by the next start or close.
func (s *playbackSession) complete(retainSurface bool) (released, bool) {
	switch {
	case s.state == StatePlaying, s.state == StatePaused:
	case s.state == StatePreparing && s.decoder != nil:
		// the decoder ran to the end inside Start
	default:
		return released{}, false
	}

	s.moveTo(StateCompleted)
	return s.detach(retainSurface), true
}

// fail handles an asynchronous decoder error.
func (s *playbackSession) fail(code ErrorCode) (*PlaybackError, released, bool) {
	if !s.state.active() {
		return nil, released{}, false
	}

	kind := ErrDecoderRuntime
	if s.state == StatePreparing {
		kind = ErrDecoderPrepareFailed
	}

	failure := &PlaybackError{Kind: kind, Code: code, Path: s.mediaPath}
	s.lastErr = failure
	s.moveTo(StateFailed)
	return failure, s.detach(false), true
}

// close ends the session for good. The epoch moves on so late notifications
// from the last decoder are dropped.
func (s *playbackSession) close() released {
	s.closed = true
	s.epoch++
	s.state = StateIdle
	return s.detach(false)
}

func (s *playbackSession) snapshot() Snapshot {
	return Snapshot{
		State:             s.state,
		Epoch:             s.epoch,
		MediaPath:         s.mediaPath,
		PermissionGranted: s.permissionGranted,
		HasSurface:        s.surface != nil,
		HasDecoder:        s.decoder != nil,
		VideoWidth:        s.videoWidth,
		VideoHeight:       s.videoHeight,
		LastError:         s.lastErr,
	}
}

func (s *playbackSession) String() string {
	return fmt.Sprintf("<session: %s, epoch: %d, path: %s>", s.state, s.epoch, s.mediaPath)
}
