// Copyright Safing ICS Technologies GmbH. Use of this source code is governed by the AGPL license that can be found in the LICENSE file.

package log

import (
	"fmt"
	"time"
)

func writeLine(line *logLine) {
	outputLock.Lock()
	defer outputLock.Unlock()

	fmt.Fprintln(output, formatLine(line, useColor))
}

func writer() {
	defer close(writerDone)

	for {
		// wait until logs need to be processed
		select {
		case <-logsWaiting:
			logsWaitingFlag.UnSet()
		case <-forceEmptyingOfBuffer:
		case <-shutdownSignal:
			finalize()
			return
		}

		// write all the logs!
	writeLoop:
		for {
			select {
			case line := <-logBuffer:
				writeLine(line)
			case <-forceEmptyingOfBuffer:
			default:
				break writeLoop
			}
		}
	}
}

func finalize() {
	for {
		select {
		case line := <-logBuffer:
			writeLine(line)
		case <-time.After(10 * time.Millisecond):
			return
		}
	}
}
