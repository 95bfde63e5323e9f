package entropy

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/safing/pwgen/log"
)

const (
	tickDuration  = 10 * time.Millisecond
	ticksPerEvent = 64
	osFeedBytes   = 64
)

// TickFeeder adds the least significant bit of the current time every tick.
// The more work the program does, the less predictable the scheduling of the
// feeder goroutine becomes. It runs until the context is canceled.
func TickFeeder(ctx context.Context, m *Manager) error {
	ticker := time.NewTicker(tickDuration)
	defer ticker.Stop()

	var value int64
	var pushes int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			value = (value << 1) | (time.Now().UnixNano() % 2)
			pushes++
			if pushes >= ticksPerEvent {
				m.AddInt(Timer, value)
				pushes = 0
			}
		}
	}
}

// FeedOS adds entropy from the operating system.
func FeedOS(m *Manager) error {
	osEntropy := make([]byte, osFeedBytes)
	defer clear(osEntropy)

	n, err := rand.Read(osEntropy)
	if err != nil {
		return fmt.Errorf("entropy: could not read entropy from os: %w", err)
	}
	if n != osFeedBytes {
		return fmt.Errorf("entropy: could not read enough entropy from os: got only %d bytes instead of %d", n, osFeedBytes)
	}
	m.AddData(osEntropy, 8, osFeedBytes*8)
	return nil
}

// OSFeeder adds entropy from the operating system at the given interval
// until the context is canceled.
func OSFeeder(ctx context.Context, m *Manager, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := FeedOS(m); err != nil {
			log.Errorf("%s", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
