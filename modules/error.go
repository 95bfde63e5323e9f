package modules

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ModuleError wraps a panic into an error.
type ModuleError struct {
	Message string

	ModuleName string
	TaskName   string
	TaskType   string // one of "worker" or "module-control"

	PanicValue interface{}
	StackTrace string
}

// NewPanicError creates a new panic error message (including a stack trace).
func (m *Module) NewPanicError(taskName, taskType string, panicValue interface{}) *ModuleError {
	return &ModuleError{
		Message:    fmt.Sprintf("panic in %s %s: %s", taskType, taskName, panicValue),
		ModuleName: m.Name,
		TaskName:   taskName,
		TaskType:   taskType,
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
	}
}

// Error returns the string representation of the error.
func (me *ModuleError) Error() string {
	return me.Message
}

// IsPanic returns whether the given error is a wrapped panic by the modules package and additionally returns it, if true.
func IsPanic(err error) (bool, *ModuleError) {
	var me *ModuleError
	if errors.As(err, &me) {
		return true, me
	}
	return false, nil
}
