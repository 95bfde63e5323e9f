package entropy

import (
	"sync"

	"github.com/safing/pwgen/config"
)

var (
	registerOnce sync.Once
	registerErr  error

	capOptions = []struct {
		kind EventKind
		key  string
		name string
		def  int64
	}{
		{MouseClick, "entropy/mouse_click_bits", "Mouse Click Entropy", DefaultMouseClickBits},
		{MouseMove, "entropy/mouse_move_bits", "Mouse Move Entropy", DefaultMouseMoveBits},
		{MouseWheel, "entropy/mouse_wheel_bits", "Mouse Wheel Entropy", DefaultMouseWheelBits},
		{Keyboard, "entropy/keyboard_bits", "Keyboard Entropy", DefaultKeyboardBits},
		{Timer, "entropy/timer_max_bits", "Timer Entropy", DefaultTimerBits},
		{System, "entropy/system_bits", "System Entropy", DefaultSystemBits},
	}
	capGetters = make(map[EventKind]config.IntOption)
)

// RegisterConfig registers the per-event caps as config options.
func RegisterConfig() error {
	registerOnce.Do(func() {
		for _, opt := range capOptions {
			err := config.Register(&config.Option{
				Name:            opt.name,
				Key:             opt.key,
				Description:     "Maximum bits credited for a single " + opt.kind.String() + " event.",
				OptType:         config.OptTypeInt,
				ExpertiseLevel:  config.ExpertiseLevelExpert,
				DefaultValue:    opt.def,
				ValidationRegex: "^[0-9]{1,2}$",
			})
			if err != nil {
				registerErr = err
				return
			}
			capGetters[opt.kind] = config.GetAsInt(opt.key, opt.def)
		}
	})
	return registerErr
}

// CapsFromConfig returns the caps with all configured values applied.
func CapsFromConfig() (Caps, error) {
	if err := RegisterConfig(); err != nil {
		return nil, err
	}
	caps := DefaultCaps()
	for kind, getter := range capGetters {
		caps[kind] = int(getter())
	}
	return caps, nil
}
