package hash

import (
	"encoding/hex"
	"fmt"
)

type knownAnswer struct {
	alg      Algorithm
	input    string
	expected string
}

var knownAnswers = []knownAnswer{
	{SHA2_256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	{SHA2_256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	{SHA2_512, "The quick brown fox jumps over the lazy dog", "07e547d9586f6a73f73fbac0435ed76951218fb7d0c8d788a309d785436bbb642e93a252a954f23912547d1e8a3b5ed6e1bfd7097821233fa0538f3db854fee6"},
	{SHA3_256, "", "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"},
	{SHA3_512, "The quick brown fox jumps over the lazy dog", "01dedd5de4ef14642445ba5f5b97c15e47b9ad931326e4b0727cd94cefc44fff23f07bf543139939b49128caf436dc1bdee54fcb24023a08d9403f9b4bf0d450"},
	{BLAKE2S_256, "abc", "508c5e8c327c14e2e1a72ba34eeb452f37458b209ed63a294d999b4c86675982"},
	{BLAKE2B_512, "abc", "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d17d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923"},
}

// SelfTest checks every supported algorithm against known answers.
func SelfTest() error {
	tested := make(map[Algorithm]bool)
	for _, ka := range knownAnswers {
		got := hex.EncodeToString(SumString(ka.input, ka.alg).Sum)
		if got != ka.expected {
			return fmt.Errorf("hash: self-test of %s failed: expected %s, got %s", ka.alg, ka.expected, got)
		}
		tested[ka.alg] = true
	}
	for _, alg := range All() {
		if !tested[alg] {
			return fmt.Errorf("hash: no self-test for %s", alg)
		}
	}
	return nil
}
