package config

import (
	"regexp"
	"sync"
)

// Variable Type IDs.
const (
	OptTypeString      uint8 = 1
	OptTypeStringArray uint8 = 2
	OptTypeInt         uint8 = 3
	OptTypeBool        uint8 = 4
)

// Expertise levels.
const (
	ExpertiseLevelUser      uint8 = 1
	ExpertiseLevelExpert    uint8 = 2
	ExpertiseLevelDeveloper uint8 = 3
)

func getTypeName(t uint8) string {
	switch t {
	case OptTypeString:
		return "string"
	case OptTypeStringArray:
		return "[]string"
	case OptTypeInt:
		return "int"
	case OptTypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Option describes a configuration option.
type Option struct {
	sync.Mutex

	Name            string
	Key             string // category/sub/key
	Description     string
	ExpertiseLevel  uint8
	OptType         uint8
	DefaultValue    interface{}
	ValidationRegex string

	compiledRegex *regexp.Regexp
	activeValue   *valueCache
}

// TypeName returns the name of the option's type.
func (opt *Option) TypeName() string {
	return getTypeName(opt.OptType)
}

// Value returns the currently active value of the option.
func (opt *Option) Value() interface{} {
	opt.Lock()
	defer opt.Unlock()

	if opt.activeValue != nil {
		return opt.activeValue.getData(opt)
	}
	return opt.DefaultValue
}

type sortableOptions []*Option

// Len is the number of elements in the collection.
func (opts sortableOptions) Len() int {
	return len(opts)
}

// Less reports whether the element with
// index i should sort before the element with index j.
func (opts sortableOptions) Less(i, j int) bool {
	return opts[i].Key < opts[j].Key
}

// Swap swaps the elements with indexes i and j.
func (opts sortableOptions) Swap(i, j int) {
	opts[i], opts[j] = opts[j], opts[i]
}
