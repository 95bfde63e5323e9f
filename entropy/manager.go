// Package entropy accounts for entropy events and feeds them, whitened, into
// a random pool.
package entropy

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"sync"
	"time"

	"github.com/tevino/abool"

	"github.com/safing/pwgen/container"
	"github.com/safing/pwgen/log"
	"github.com/safing/pwgen/metrics"
)

// Sink receives whitened entropy. *rng.Pool implements it.
type Sink interface {
	AddEntropy(data []byte) error
}

// JitterSource provides non-secret scheduling jitter. *rng.Pool implements it.
type JitterSource interface {
	Jitter(n int) int
}

const (
	moveInterval      = 50
	moveIntervalRange = 50
	wheelRange        = 10
)

// Manager accumulates an estimate of the entropy fed into the sink. The
// estimate saturates at MaxBits and never decreases except through
// ResetCounters.
type Manager struct {
	lock sync.Mutex

	sink   Sink
	jitter JitterSource
	caps   Caps

	bits      int
	seq       uint64
	counters  map[EventKind]uint64
	last      map[EventKind][sha512.Size]byte
	saturated *abool.AtomicBool

	moveCountdown  int
	wheelCountdown int
}

// NewManager returns a manager feeding the given sink. A nil jitter source
// disables jitter on event throttling.
func NewManager(sink Sink, jitter JitterSource, caps Caps) *Manager {
	if caps == nil {
		caps = DefaultCaps()
	}
	m := &Manager{
		sink:      sink,
		jitter:    jitter,
		caps:      caps,
		counters:  make(map[EventKind]uint64),
		last:      make(map[EventKind][sha512.Size]byte),
		saturated: abool.New(),
	}
	m.moveCountdown = m.nextMoveCountdown()
	m.wheelCountdown = m.nextWheelCountdown()
	return m
}

func (m *Manager) jitterN(n int) int {
	if m.jitter == nil {
		return 0
	}
	return m.jitter.Jitter(n)
}

func (m *Manager) nextMoveCountdown() int {
	return moveInterval + m.jitterN(moveIntervalRange)
}

func (m *Manager) nextWheelCountdown() int {
	return 1 + m.jitterN(wheelRange)
}

// Cap returns the bit cap for the given kind.
func (m *Manager) Cap(kind EventKind) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.caps[kind]
}

// Add adds an event using the configured cap of its kind.
func (m *Manager) Add(kind EventKind, raw []byte) int {
	return m.AddEvent(kind, raw, m.Cap(kind))
}

// AddEvent whitens the raw event data into the sink and credits at most
// capBits. A raw event identical to the previous one of the same kind is
// mixed in but credited nothing. Events are never rejected.
func (m *Manager) AddEvent(kind EventKind, raw []byte, capBits int) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	digest := sha512.Sum512(raw)
	credit := capBits
	if last, ok := m.last[kind]; ok && last == digest {
		credit = 0
	}
	m.last[kind] = digest

	return m.feed(kind, raw, credit)
}

// AddData adds a bulk data buffer, crediting bitsPerByte for every byte, at
// most capBits.
func (m *Manager) AddData(buf []byte, bitsPerByte, capBits int) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	credit := min(len(buf)*bitsPerByte, capBits)
	return m.feed(Data, buf, credit)
}

// AddMouseMove adds a mouse move event. Only every 50th to 99th event is
// credited.
func (m *Manager) AddMouseMove(raw []byte) int {
	m.lock.Lock()
	m.moveCountdown--
	credited := m.moveCountdown <= 0
	if credited {
		m.moveCountdown = m.nextMoveCountdown()
	}
	m.lock.Unlock()

	if !credited {
		m.countOnly(MouseMove)
		return 0
	}
	return m.Add(MouseMove, raw)
}

// AddMouseWheel adds a mouse wheel event at a jittered rate.
func (m *Manager) AddMouseWheel(raw []byte) int {
	m.lock.Lock()
	m.wheelCountdown--
	credited := m.wheelCountdown <= 0
	if credited {
		m.wheelCountdown = m.nextWheelCountdown()
	}
	m.lock.Unlock()

	if !credited {
		m.countOnly(MouseWheel)
		return 0
	}
	return m.Add(MouseWheel, raw)
}

func (m *Manager) countOnly(kind EventKind) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.counters[kind]++
	metrics.EntropyEvents.Inc()
}

// feed whitens the event and passes it to the sink. Callers must hold the lock.
func (m *Manager) feed(kind EventKind, raw []byte, credit int) int {
	m.seq++
	m.counters[kind]++
	metrics.EntropyEvents.Inc()

	c := container.New([]byte{byte(kind)})
	c.AppendNumber(m.seq)
	c.AppendNumber(uint64(time.Now().UnixNano()))
	c.AppendAsBlock(raw)
	data := c.CompileData()
	whitened := sha512.Sum512(data)
	clear(data)
	c.Wipe()

	if err := m.sink.AddEntropy(whitened[:]); err != nil {
		log.Warningf("entropy: failed to add %s event: %s", kind, err)
		return 0
	}
	clear(whitened[:])

	if credit <= 0 {
		return 0
	}
	added := min(credit, MaxBits-m.bits)
	if added <= 0 {
		return 0
	}
	m.bits += added
	if m.bits >= MaxBits {
		m.saturated.Set()
	}
	metrics.EntropyBitsAdded.Add(added)
	return added
}

// Bits returns the current entropy estimate.
func (m *Manager) Bits() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.bits
}

// Saturated reports whether the estimate reached MaxBits.
func (m *Manager) Saturated() bool {
	return m.saturated.IsSet()
}

// Counters returns a copy of the per-kind event counters.
func (m *Manager) Counters() map[EventKind]uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	counters := make(map[EventKind]uint64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	return counters
}

// ResetCounters resets the entropy estimate and all event counters.
func (m *Manager) ResetCounters() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.bits = 0
	m.saturated.UnSet()
	clear(m.counters)
	clear(m.last)
}

// AddInt adds a numeric event, such as a key code or a timer reading.
func (m *Manager) AddInt(kind EventKind, n int64) int {
	return m.Add(kind, binary.LittleEndian.AppendUint64(nil, uint64(n)))
}

// AddText adds user supplied text, crediting one bit per byte.
func (m *Manager) AddText(text string) int {
	buf := []byte(text)
	defer clear(buf)

	m.lock.Lock()
	defer m.lock.Unlock()

	credit := min(len(bytes.TrimSpace(buf)), m.caps[Text])
	return m.feed(Text, buf, credit)
}
