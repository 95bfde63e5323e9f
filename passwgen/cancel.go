package passwgen

import "errors"

// Cancel causes. A batch canceled with one of these as the context cause
// reports it in Result.CancelReason.
var (
	ErrUserCancel         = errors.New("canceled by user")
	ErrProgramTermination = errors.New("program terminating")
	ErrSystemShutdown     = errors.New("system shutting down")
)
