package cinema

// State is the lifecycle state of a playback session.
type State int

const (
	StateIdle State = iota
	StateAwaitingPermission
	StatePreparing
	StatePlaying
	StatePaused
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// active reports whether the session holds, or is about to hold, a surface
// and decoder pair.
func (s State) active() bool {
	return s == StatePreparing || s == StatePlaying || s == StatePaused
}

// NotificationKind tags a decoder notification.
type NotificationKind int

const (
	NotificationSizeKnown NotificationKind = iota
	NotificationCompletion
	NotificationError
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationSizeKnown:
		return "size_known"
	case NotificationCompletion:
		return "completion"
	case NotificationError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is an asynchronous decoder event. Epoch is stamped by the
// coordinator when it hands the decoder its emit function; decoders never
// set it themselves.
type Notification struct {
	Kind   NotificationKind
	Epoch  uint64
	Width  int
	Height int
	Code   ErrorCode
}

// SizeKnown builds a size-known notification.
func SizeKnown(width, height int) Notification {
	return Notification{Kind: NotificationSizeKnown, Width: width, Height: height}
}

// Completion builds a completion notification.
func Completion() Notification {
	return Notification{Kind: NotificationCompletion}
}

// DecodeError builds an error notification carrying code.
func DecodeError(code ErrorCode) Notification {
	return Notification{Kind: NotificationError, Code: code}
}

// Snapshot is a point-in-time copy of the session, safe to read anywhere.
type Snapshot struct {
	State             State
	Epoch             uint64
	MediaPath         string
	PermissionGranted bool
	HasSurface        bool
	HasDecoder        bool
	VideoWidth        int
	VideoHeight       int
	LastError         error
}
