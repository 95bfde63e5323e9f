package run

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safing/pwgen/passwgen"
)

func TestCauseFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, passwgen.ErrUserCancel, CauseFor(os.Interrupt))
	assert.Equal(t, passwgen.ErrUserCancel, CauseFor(syscall.SIGINT))
	assert.Equal(t, passwgen.ErrProgramTermination, CauseFor(syscall.SIGTERM))
	assert.Equal(t, passwgen.ErrProgramTermination, CauseFor(syscall.SIGQUIT))
	assert.Equal(t, passwgen.ErrSystemShutdown, CauseFor(syscall.SIGHUP))
}

func TestRun(t *testing.T) { //nolint:paralleltest
	assert.Equal(t, ExitOK, Run(func(ctx context.Context) error {
		return ctx.Err()
	}))
	assert.Equal(t, ExitError, Run(func(context.Context) error {
		return errors.New("failed")
	}))
}
