// Copyright Safing ICS Technologies GmbH. Use of this source code is governed by the AGPL license that can be found in the LICENSE file.

package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"
)

// concept
/*
- Logging function:
  - check if package-based levelling enabled
    - if yes, check if level is active on this package
  - check if level is active
  - send data to backend via big buffered channel
- Backend:
  - wait until there is time for writing logs
  - write logs to the configured writer (stderr by default)
- Channel overbuffering protection:
  - if buffer is full, trigger write
- Before Start, lines are written synchronously so that CLI runs lose nothing.
*/

// Severity describes a log level.
type Severity uint32

type logLine struct {
	msg       string
	level     Severity
	timestamp time.Time
	file      string
	line      int
}

// Log Levels.
const (
	TraceLevel    Severity = 1
	DebugLevel    Severity = 2
	InfoLevel     Severity = 3
	WarningLevel  Severity = 4
	ErrorLevel    Severity = 5
	CriticalLevel Severity = 6
)

var (
	logBuffer             chan *logLine
	forceEmptyingOfBuffer = make(chan struct{})

	logLevelInt = uint32(InfoLevel)
	logLevel    = &logLevelInt

	pkgLevelsActive = abool.NewBool(false)
	pkgLevels       = make(map[string]Severity)
	pkgLevelsLock   sync.Mutex

	logsWaiting     = make(chan struct{}, 1)
	logsWaitingFlag = abool.NewBool(false)

	started        = abool.NewBool(false)
	stopped        = abool.NewBool(false)
	shutdownSignal = make(chan struct{})
	writerDone     = make(chan struct{})

	outputLock sync.Mutex
	output     io.Writer = os.Stderr
	useColor             = false
)

// SetPkgLevels sets individual log levels for packages.
func SetPkgLevels(levels map[string]Severity) {
	pkgLevelsLock.Lock()
	pkgLevels = levels
	pkgLevelsLock.Unlock()
	pkgLevelsActive.Set()
}

// UnSetPkgLevels removes all individual log levels for packages.
func UnSetPkgLevels() {
	pkgLevelsActive.UnSet()
}

// SetLogLevel sets a new log level.
func SetLogLevel(level Severity) {
	atomic.StoreUint32(logLevel, uint32(level))
}

// GetLogLevel returns the current log level.
func GetLogLevel() Severity {
	return Severity(atomic.LoadUint32(logLevel))
}

// SetOutput replaces the writer log lines are written to. Colors are only
// used when the writer is a terminal.
func SetOutput(w io.Writer, color bool) {
	outputLock.Lock()
	defer outputLock.Unlock()

	output = w
	useColor = color
}

// ParseLevel returns the level severity of a log level name.
func ParseLevel(level string) Severity {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warning":
		return WarningLevel
	case "error":
		return ErrorLevel
	case "critical":
		return CriticalLevel
	}
	return 0
}

// ParsePkgLevels parses a list like "rng=trace,passwgen=debug".
func ParsePkgLevels(list string) (map[string]Severity, error) {
	newPkgLevels := make(map[string]Severity)
	if list == "" {
		return newPkgLevels, nil
	}

	for _, pair := range strings.Split(list, ",") {
		splitted := strings.Split(pair, "=")
		if len(splitted) != 2 {
			return nil, fmt.Errorf("invalid package log level %q", pair)
		}
		pkgLevel := ParseLevel(splitted[1])
		if pkgLevel == 0 {
			return nil, fmt.Errorf("invalid log level %q for package %q", splitted[1], splitted[0])
		}
		newPkgLevels[splitted[0]] = pkgLevel
	}
	return newPkgLevels, nil
}

// Start starts the background writer. Logging cannot be restarted after
// Shutdown.
func Start() error {
	if stopped.IsSet() {
		return errors.New("logging was already shut down")
	}
	if !started.SetToIf(false, true) {
		return nil
	}

	logBuffer = make(chan *logLine, 1024)
	go writer()
	return nil
}

// Shutdown writes all remaining log lines and stops the background writer.
func Shutdown() {
	if started.SetToIf(true, false) {
		stopped.Set()
		close(shutdownSignal)
		<-writerDone
	}
}
