package passwgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/safing/pwgen/log"
)

// Generation sources passed to a script on init.
const (
	GenChars  = 1
	GenWords  = 2
	GenFormat = 4
)

// ScriptInit describes a batch to a script.
type ScriptInit struct {
	Count  uint64
	Gen    int
	Flags  Flags
	Chars  int
	Words  int
	Format string
}

// ScriptResult is the answer of a script to a generate call.
type ScriptResult struct {
	// Password replaces the generated password if it is not empty.
	Password string
	// Entropy is the entropy claimed by the script.
	Entropy float64
	Err     error
}

// Script post-processes or replaces generated passwords. Calls are strictly
// sequential: a result is awaited before the next call.
type Script interface {
	// Start prepares the script for a batch. The outcome of the
	// preparation is delivered as the first result on the Results channel.
	Start(init ScriptInit) error
	// Standalone reports whether the script generates passwords on its own.
	Standalone() bool
	// Generate asks the script for a password. The result is delivered on
	// the Results channel.
	Generate(index uint64, password string, entropy float64) error
	Results() <-chan ScriptResult
	// Terminate forcibly stops the script. A terminated script must be
	// started again before use.
	Terminate()
}

// Script errors.
var (
	ErrScript             = errors.New("script error")
	ErrScriptUnresponsive = errors.New("script does not respond, check it for infinite loops")
)

// scriptEntropyPerChar bounds the claimed entropy per character by the
// number of Unicode code points.
const scriptEntropyPerChar = 20

// callScript passes the password to the script and waits for the result.
// It returns ctx's cause if the batch is canceled while waiting.
func (g *Generator) callScript(ctx context.Context, s Script, index uint64, pw []rune, entropy float64) ([]rune, float64, error) {
	if err := s.Generate(index, string(pw), entropy); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrScript, err)
	}

	res, err := g.awaitScript(ctx, s)
	if err != nil {
		return nil, 0, err
	}
	if res.Password != "" {
		pw = []rune(res.Password)
		if len(pw) > MaxScriptChars {
			pw = pw[:MaxScriptChars]
		}
	}
	return pw, math.Min(scriptEntropyPerChar*float64(len(pw)), math.Max(0, res.Entropy)), nil
}

// awaitScript waits for the next result of the script. An unresponsive
// script is terminated after the configured number of polls, or when ctx
// is canceled.
func (g *Generator) awaitScript(ctx context.Context, s Script) (ScriptResult, error) {
	ticker := time.NewTicker(g.opts.ScriptPoll)
	defer ticker.Stop()

	timeouts := 0
	for {
		select {
		case res := <-s.Results():
			if res.Err != nil {
				return res, fmt.Errorf("%w: %w", ErrScript, res.Err)
			}
			if timeouts > 0 {
				log.Infof("passwgen: script responded after %d polls", timeouts)
			}
			return res, nil

		case <-ticker.C:
			timeouts++
			if timeouts == 1 {
				log.Infof("passwgen: waiting for script ...")
			}
			if g.opts.ScriptMaxTimeouts > 0 && timeouts >= g.opts.ScriptMaxTimeouts {
				s.Terminate()
				log.Warningf("passwgen: script was terminated forcibly after %d polls, check it for infinite loops", timeouts)
				return ScriptResult{}, ErrScriptUnresponsive
			}

		case <-ctx.Done():
			if timeouts > 0 {
				s.Terminate()
				if errors.Is(context.Cause(ctx), ErrUserCancel) {
					log.Warningf("passwgen: script was terminated forcibly, check it for infinite loops")
				}
			}
			return ScriptResult{}, context.Cause(ctx)
		}
	}
}
