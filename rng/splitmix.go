package rng

// SplitMix64 is a fast, non-cryptographic generator. It is only used for
// scheduling jitter and must never produce secrets.
type SplitMix64 struct {
	state uint64
}

// Seed sets the generator state.
func (s *SplitMix64) Seed(seed uint64) {
	s.state = seed
}

// Uint64 returns the next value.
func (s *SplitMix64) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n). The result is slightly biased.
func (s *SplitMix64) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint64() % uint64(n))
}
