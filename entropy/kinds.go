package entropy

// EventKind identifies the source of an entropy event.
type EventKind uint8

// Event kinds.
const (
	MouseClick EventKind = iota + 1
	MouseMove
	MouseWheel
	Keyboard
	Timer
	System
	Data
	Text
)

// Default bit caps per event. These are conservative estimates, not
// measurements.
const (
	DefaultMouseClickBits = 2
	DefaultMouseMoveBits  = 2
	DefaultMouseWheelBits = 0
	DefaultKeyboardBits   = 1
	DefaultTimerBits      = 8
	DefaultSystemBits     = 24
)

// MaxBits is the saturation point of the entropy estimate.
const MaxBits = 4096

func (k EventKind) String() string {
	switch k {
	case MouseClick:
		return "mouse-click"
	case MouseMove:
		return "mouse-move"
	case MouseWheel:
		return "mouse-wheel"
	case Keyboard:
		return "keyboard"
	case Timer:
		return "timer"
	case System:
		return "system"
	case Data:
		return "data"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Caps holds the maximum bits credited per event kind.
type Caps map[EventKind]int

// DefaultCaps returns the default caps.
func DefaultCaps() Caps {
	return Caps{
		MouseClick: DefaultMouseClickBits,
		MouseMove:  DefaultMouseMoveBits,
		MouseWheel: DefaultMouseWheelBits,
		Keyboard:   DefaultKeyboardBits,
		Timer:      DefaultTimerBits,
		System:     DefaultSystemBits,
		Data:       MaxBits,
		Text:       MaxBits,
	}
}
