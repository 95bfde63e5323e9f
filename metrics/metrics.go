// Package metrics holds the counters of the password generator and exports
// them in the Prometheus text format.
package metrics

import (
	"io"
	"sync"

	vm "github.com/VictoriaMetrics/metrics"
)

var (
	set = vm.NewSet()

	// EntropyBitsAdded counts the entropy bits credited by the entropy manager.
	EntropyBitsAdded = set.NewCounter("pwgen_entropy_bits_added_total")
	// EntropyEvents counts all entropy events, credited or not.
	EntropyEvents = set.NewCounter("pwgen_entropy_events_total")
	// PoolFlushes counts keystream rekeys of the random pool.
	PoolFlushes = set.NewCounter("pwgen_pool_flushes_total")
	// PoolBytesRead counts the bytes handed out by the random pool.
	PoolBytesRead = set.NewCounter("pwgen_pool_bytes_read_total")
	// SeedFileWrites counts successful seed file writes.
	SeedFileWrites = set.NewCounter("pwgen_seed_file_writes_total")
	// PasswordsGenerated counts generated passwords.
	PasswordsGenerated = set.NewCounter("pwgen_passwords_generated_total")
	// PasswordEntropy tracks the reported entropy of generated passwords.
	PasswordEntropy = set.NewHistogram("pwgen_password_entropy_bits")
	// Encryptions counts successful text encryptions.
	Encryptions = set.NewCounter("pwgen_crypttext_encryptions_total")
	// Decryptions counts successful text decryptions.
	Decryptions = set.NewCounter("pwgen_crypttext_decryptions_total")
	// DecryptionFailures counts failed text decryptions.
	DecryptionFailures = set.NewCounter("pwgen_crypttext_decryption_failures_total")

	gaugeLock sync.Mutex
	gauges    = make(map[string]struct{})
)

// RegisterGauge registers a gauge that calls fn when metrics are written.
// Registering the same name twice is a no-op.
func RegisterGauge(name string, fn func() float64) {
	gaugeLock.Lock()
	defer gaugeLock.Unlock()

	if _, ok := gauges[name]; ok {
		return
	}
	gauges[name] = struct{}{}
	set.NewGauge(name, fn)
}

// WritePrometheus writes all metrics, including process metrics, in the
// Prometheus text format.
func WritePrometheus(w io.Writer, includeProcess bool) {
	set.WritePrometheus(w)
	if includeProcess {
		vm.WriteProcessMetrics(w)
	}
}
