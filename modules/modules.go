package modules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/tevino/abool"

	"github.com/safing/pwgen/log"
)

var (
	modulesLock sync.Mutex
	modules     []*Module

	// ErrShutdown is the default cause of a module context that was canceled by Shutdown.
	ErrShutdown = errors.New("shutting down")

	// DefaultStopTimeout is the time Shutdown waits for the workers of a module.
	DefaultStopTimeout = 3 * time.Second
)

// Module represents a module.
type Module struct {
	Name string

	// lifecycle mgmt
	Started *abool.AtomicBool

	// lifecycle callback functions
	start func() error
	stop  func() error

	// shutdown mgmt
	Ctx          context.Context
	cancelCtx    context.CancelCauseFunc
	shutdownFlag *abool.AtomicBool
	workerGroup  sync.WaitGroup
	workerCnt    *int32
}

// New creates a module that is not part of the global start and
// shutdown sequence.
func New(name string, start, stop func() error) *Module {
	ctx, cancelCtx := context.WithCancelCause(context.Background())
	var workerCnt int32

	if start == nil {
		start = dummyAction
	}
	if stop == nil {
		stop = dummyAction
	}

	return &Module{
		Name:         name,
		Started:      abool.NewBool(false),
		start:        start,
		stop:         stop,
		Ctx:          ctx,
		cancelCtx:    cancelCtx,
		shutdownFlag: abool.NewBool(false),
		workerCnt:    &workerCnt,
	}
}

// Register registers a new module. The control functions `start` and `stop` are technically optional. `stop` is called _after_ all module workers finished. Modules are started in registration order and stopped in reverse order.
func Register(name string, start, stop func() error) *Module {
	m := New(name, start, stop)

	modulesLock.Lock()
	defer modulesLock.Unlock()
	modules = append(modules, m)

	return m
}

func dummyAction() error {
	return nil
}

// ShutdownInProgress returns whether the module has started shutting down. In most cases, you should use ShuttingDown instead.
func (m *Module) ShutdownInProgress() bool {
	return m.shutdownFlag.IsSet()
}

// ShuttingDown lets you listen for the shutdown signal.
func (m *Module) ShuttingDown() <-chan struct{} {
	return m.Ctx.Done()
}

// IsStopping returns whether the module is shutting down.
func (m *Module) IsStopping() bool {
	return m.shutdownFlag.IsSet()
}

// Start starts the module.
func (m *Module) Start() error {
	if !m.Started.SetToIf(false, true) {
		return nil
	}
	if err := m.runCtrlFn("start", m.start); err != nil {
		m.Started.UnSet()
		return fmt.Errorf("failed to start %s: %w", m.Name, err)
	}
	log.Debugf("modules: started %s", m.Name)
	return nil
}

// Stop cancels the module context with the given cause, waits for all workers and then calls the stop function.
func (m *Module) Stop(cause error) error {
	if !m.shutdownFlag.SetToIf(false, true) {
		return nil
	}
	if cause == nil {
		cause = ErrShutdown
	}
	m.cancelCtx(cause)

	// wait for workers
	done := make(chan struct{})
	go func() {
		m.workerGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(DefaultStopTimeout):
		return fmt.Errorf("%s: timed out while waiting for module workers to finish", m.Name)
	}

	if !m.Started.IsSet() {
		return nil
	}
	if err := m.runCtrlFn("stop", m.stop); err != nil {
		return fmt.Errorf("failed to stop %s: %w", m.Name, err)
	}
	log.Debugf("modules: stopped %s", m.Name)
	return nil
}

// Start starts all registered modules in registration order. If a module
// fails to start, the already started modules are stopped again.
func Start() error {
	modulesLock.Lock()
	toStart := append([]*Module(nil), modules...)
	modulesLock.Unlock()

	for i, m := range toStart {
		if err := m.Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := toStart[j].Stop(err); stopErr != nil {
					log.Warningf("modules: %s", stopErr)
				}
			}
			return err
		}
	}
	return nil
}

// Shutdown stops all registered modules in reverse order.
func Shutdown(cause error) error {
	modulesLock.Lock()
	toStop := append([]*Module(nil), modules...)
	modulesLock.Unlock()

	var result *multierror.Error
	for i := len(toStop) - 1; i >= 0; i-- {
		if err := toStop[i].Stop(cause); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// resetModules is used by tests.
func resetModules() {
	modulesLock.Lock()
	defer modulesLock.Unlock()
	modules = nil
}
