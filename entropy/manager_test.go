package entropy

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSink struct {
	sync.Mutex
	added [][]byte
	err   error
}

func (s *testSink) AddEntropy(data []byte) error {
	s.Lock()
	defer s.Unlock()

	if s.err != nil {
		return s.err
	}
	s.added = append(s.added, bytes.Clone(data))
	return nil
}

func (s *testSink) count() int {
	s.Lock()
	defer s.Unlock()

	return len(s.added)
}

type fixedJitter int

func (j fixedJitter) Jitter(n int) int {
	return min(int(j), n-1)
}

func TestAddEvent(t *testing.T) {
	t.Parallel()

	sink := &testSink{}
	m := NewManager(sink, nil, nil)

	assert.Equal(t, 2, m.Add(MouseClick, []byte{1, 2}))
	assert.Equal(t, 1, m.Add(Keyboard, []byte{'a'}))
	assert.Equal(t, 0, m.Add(MouseWheel, []byte{3}))
	assert.Equal(t, 24, m.Add(System, []byte("sample")))
	assert.Equal(t, 27, m.Bits())
	assert.Equal(t, 4, sink.count())

	// whitened, never verbatim
	for _, data := range sink.added {
		assert.Len(t, data, 64)
	}

	// a repeated event is mixed but not credited
	assert.Equal(t, 0, m.Add(Keyboard, []byte{'a'}))
	assert.Equal(t, 1, m.Add(Keyboard, []byte{'b'}))
	assert.Equal(t, 5, sink.count())
	assert.Equal(t, uint64(3), m.Counters()[Keyboard])

	// explicit caps
	assert.Equal(t, 5, m.AddEvent(Timer, []byte{9}, 5))
}

func TestSaturation(t *testing.T) {
	t.Parallel()

	m := NewManager(&testSink{}, nil, nil)
	for i := 0; !m.Saturated(); i++ {
		m.AddInt(System, int64(i))
		require.Less(t, i, MaxBits)
	}
	assert.Equal(t, MaxBits, m.Bits())

	// idempotent once saturated
	assert.Equal(t, 0, m.AddInt(System, -1))
	assert.Equal(t, MaxBits, m.Bits())

	m.ResetCounters()
	assert.Equal(t, 0, m.Bits())
	assert.False(t, m.Saturated())
	assert.Empty(t, m.Counters())
}

func TestAddData(t *testing.T) {
	t.Parallel()

	m := NewManager(&testSink{}, nil, nil)
	assert.Equal(t, 80, m.AddData(make([]byte, 10), 8, 1000))
	assert.Equal(t, 100, m.AddData(make([]byte, 100), 8, 100))
	assert.Equal(t, 5, m.AddText("  hello  "))
}

func TestSinkFailure(t *testing.T) {
	t.Parallel()

	m := NewManager(&testSink{err: errors.New("not ready")}, nil, nil)
	assert.Equal(t, 0, m.Add(MouseClick, []byte{1}))
	assert.Equal(t, 0, m.Bits())
	assert.Equal(t, uint64(1), m.Counters()[MouseClick])
}

func TestThrottling(t *testing.T) {
	t.Parallel()

	sink := &testSink{}
	m := NewManager(sink, fixedJitter(0), nil)

	var credited int
	for i := 0; i < moveInterval*3; i++ {
		credited += m.AddMouseMove([]byte{byte(i), byte(i >> 8)})
	}
	assert.Equal(t, 3*DefaultMouseMoveBits, credited)
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, uint64(moveInterval*3), m.Counters()[MouseMove])

	// wheel events are added at every jittered interval but credit nothing
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, m.AddMouseWheel([]byte{byte(i)}))
	}
	assert.Equal(t, 13, sink.count())
}

func TestAddFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), fileChunkSize+10), 0o600))

	sink := &testSink{}
	m := NewManager(sink, nil, nil)
	bits, err := m.AddFile(path)
	require.NoError(t, err)
	// the first chunk alone saturates the estimate
	assert.Equal(t, MaxBits, bits)
	assert.Equal(t, 2, sink.count())

	_, err = m.AddFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	bits, err = m.AddReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, bits)
}

func TestFeeders(t *testing.T) {
	t.Parallel()

	sink := &testSink{}
	m := NewManager(sink, nil, nil)
	require.NoError(t, FeedOS(m))
	assert.Equal(t, osFeedBytes*8, m.Bits())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, OSFeeder(ctx, m, time.Hour))
	require.NoError(t, TickFeeder(ctx, m))
}

func TestSystemSampler(t *testing.T) {
	t.Parallel()

	s := NewSystemSampler(t.TempDir())
	a := s.Sample()
	b := s.Sample()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)

	m := NewManager(&testSink{}, nil, nil)
	assert.Equal(t, DefaultSystemBits, m.AddSystemEntropy(s))
}

func TestCapsFromConfig(t *testing.T) {
	t.Parallel()

	caps, err := CapsFromConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultCaps(), caps)
	assert.Equal(t, "mouse-click", MouseClick.String())
}
