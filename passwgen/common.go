package passwgen

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/safing/pwgen/log"
)

// MaxCommonPasswords bounds the size of the common password list.
const MaxCommonPasswords = 1000000

// ErrNoCommonPasswords is returned if a common password list is empty.
var ErrNoCommonPasswords = errors.New("no common passwords in list")

// LoadCommonPasswords loads lists of common passwords, one per line, and
// returns the number of distinct passwords. A password found in the lists
// is credited with at most floor(log2(size)) bits. No paths, or only empty
// ones, disable the check.
func (g *Generator) LoadCommonPasswords(paths ...string) (int, error) {
	common := make(map[string]struct{})
	var loaded []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := readCommonPasswords(path, common); err != nil {
			return 0, err
		}
		loaded = append(loaded, path)
	}
	if len(loaded) > 0 && len(common) == 0 {
		return 0, ErrNoCommonPasswords
	}

	g.sourcesLock.Lock()
	if len(common) == 0 {
		g.common, g.commonEntropy = nil, 0
	} else {
		g.common = common
		g.commonEntropy = int(math.Floor(math.Log2(float64(len(common)))))
	}
	g.sourcesLock.Unlock()

	if len(loaded) > 0 {
		log.Infof("passwgen: loaded %d common passwords from %s", len(common), strings.Join(loaded, ", "))
	}
	return len(common), nil
}

// readCommonPasswords adds the lines of the file to common, until
// MaxCommonPasswords is reached.
func readCommonPasswords(path string, common map[string]struct{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open common password list: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	for len(common) < MaxCommonPasswords && scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			common[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read common password list %s: %w", path, err)
	}
	return nil
}

// isCommon reports whether pw is in the common password list.
func (src *sources) isCommon(pw string) bool {
	if src.common == nil {
		return false
	}
	_, ok := src.common[pw]
	return ok
}
