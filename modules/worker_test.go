package modules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestWorker(t *testing.T) {
	t.Parallel()

	wModule := New("worker test module", nil, nil)

	// test basic functionality
	assert.NoError(t, wModule.RunWorker("test worker", func(ctx context.Context) error {
		return nil
	}))

	// test returning an error
	assert.ErrorIs(t, wModule.RunWorker("test worker", func(ctx context.Context) error {
		return errTest
	}), errTest)

	// test service functionality
	failCnt := 0
	var sWTestGroup sync.WaitGroup
	sWTestGroup.Add(1)
	wModule.StartServiceWorker("test service-worker", 2*time.Millisecond, func(ctx context.Context) error {
		failCnt++
		if failCnt >= 3 {
			sWTestGroup.Done()
			return nil
		}
		return errTest
	})
	sWTestGroup.Wait()
	assert.Equal(t, 3, failCnt)

	// test panic recovery
	err := wModule.RunWorker("test worker", func(ctx context.Context) error {
		var a []byte
		_ = a[0]
		return nil
	})
	panicked, mErr := IsPanic(err)
	require.True(t, panicked)
	assert.Equal(t, "worker", mErr.TaskType)
	assert.NotEmpty(t, mErr.StackTrace)
}

func TestStopCause(t *testing.T) {
	t.Parallel()

	errReason := errors.New("system shutdown")
	m := New("cause test module", nil, nil)

	started := make(chan struct{})
	var cause error
	m.StartWorker("waiter", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cause = context.Cause(ctx)
		return nil
	})
	<-started

	require.NoError(t, m.Stop(errReason))
	assert.ErrorIs(t, cause, errReason)
	assert.Equal(t, 0, m.Workers())

	// no new workers after shutdown
	assert.ErrorIs(t, m.RunWorker("late", func(ctx context.Context) error { return nil }), context.Canceled)
}

func TestStartShutdownOrder(t *testing.T) { //nolint:paralleltest // Uses global module list.
	resetModules()
	defer resetModules()

	var order []string
	record := func(s string) func() error {
		return func() error {
			order = append(order, s)
			return nil
		}
	}
	Register("a", record("start a"), record("stop a"))
	Register("b", record("start b"), record("stop b"))
	Register("c", func() error { return errTest }, record("stop c"))

	err := Start()
	require.ErrorIs(t, err, errTest)
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, order)

	resetModules()
	order = nil
	Register("x", record("start x"), record("stop x"))
	Register("y", record("start y"), record("stop y"))
	require.NoError(t, Start())
	require.NoError(t, Shutdown(nil))
	assert.Equal(t, []string{"start x", "start y", "stop y", "stop x"}, order)
}
