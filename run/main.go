// Package run executes a program lifecycle based on modules, mapping
// termination signals to cancellation causes.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/modules"
	"github.com/safing/pwgen/passwgen"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

var (
	// PrintStackOnExit prints the stack before shutting down.
	PrintStackOnExit bool

	// ShutdownTimeout bounds the time between a signal and the exit.
	ShutdownTimeout = 3 * time.Minute

	sigUSR1 = syscall.Signal(0xa) // dummy for windows
)

// CauseFor returns the cancel cause for a signal.
func CauseFor(sig os.Signal) error {
	switch sig {
	case os.Interrupt, syscall.SIGINT:
		return passwgen.ErrUserCancel
	case syscall.SIGHUP:
		return passwgen.ErrSystemShutdown
	default:
		return passwgen.ErrProgramTermination
	}
}

// Run starts all modules, runs fn and shuts all modules down again. The
// context passed to fn is canceled with the cause of the first termination
// signal. It returns the exit code.
func Run(fn func(ctx context.Context) error) int {
	// Start
	if err := modules.Start(); err != nil {
		log.Errorf("main: failed to start: %s", err)
		if PrintStackOnExit {
			printStackTo(os.Stdout)
		}
		_ = modules.Shutdown(err)
		return ExitError
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	// catch interrupt for clean shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		sigUSR1,
	)
	defer signal.Stop(signalCh)

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	var err error
signalLoop:
	for {
		select {
		case sig := <-signalCh:
			// only print and continue to wait if SIGUSR1
			if sig == sigUSR1 {
				_ = pprof.Lookup("goroutine").WriteTo(os.Stderr, 1)
				continue signalLoop
			}

			cause := CauseFor(sig)
			fmt.Fprintln(os.Stderr, " <INTERRUPT>")
			log.Warningf("main: %s, shutting down", cause)
			cancel(cause)
			go forceExit(signalCh)

			if PrintStackOnExit {
				printStackTo(os.Stdout)
			}
			err = <-done
			break signalLoop

		case err = <-done:
			break signalLoop
		}
	}

	shutdownCause := context.Cause(ctx)
	if shutdownCause == nil {
		shutdownCause = modules.ErrShutdown
	}
	if shutdownErr := modules.Shutdown(shutdownCause); shutdownErr != nil {
		log.Warningf("main: %s", shutdownErr)
	}

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		log.Errorf("main: %s", err)
		return ExitError
	case errors.Is(context.Cause(ctx), passwgen.ErrUserCancel):
		return ExitInterrupted
	default:
		return ExitOK
	}
}

// forceExit exits after repeated signals or if the shutdown takes too long.
func forceExit(signalCh <-chan os.Signal) {
	forceCnt := 5
	timeout := time.NewTimer(ShutdownTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-signalCh:
			forceCnt--
			if forceCnt > 0 {
				fmt.Fprintf(os.Stderr, " <INTERRUPT> again, but already shutting down. %d more to force.\n", forceCnt)
				continue
			}
			fmt.Fprintln(os.Stderr, "===== FORCED EXIT =====")
		case <-timeout.C:
			fmt.Fprintln(os.Stderr, "===== TAKING TOO LONG FOR SHUTDOWN =====")
		}
		printStackTo(os.Stderr)
		os.Exit(ExitError)
	}
}

func printStackTo(writer io.Writer) {
	fmt.Fprintln(writer, "=== PRINTING TRACES ===")
	fmt.Fprintln(writer, "=== GOROUTINES ===")
	_ = pprof.Lookup("goroutine").WriteTo(writer, 1)
	fmt.Fprintln(writer, "=== BLOCKING ===")
	_ = pprof.Lookup("block").WriteTo(writer, 1)
	fmt.Fprintln(writer, "=== MUTEXES ===")
	_ = pprof.Lookup("mutex").WriteTo(writer, 1)
	fmt.Fprintln(writer, "=== END TRACES ===")
}
