package info

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullVersion(t *testing.T) {
	t.Parallel()

	v := FullVersion("cipher: chacha20")
	assert.True(t, strings.HasPrefix(v, "pwgen "+Version()+"\n"))
	assert.Contains(t, v, "\ncipher: chacha20\n")
	assert.Contains(t, v, "license.")
	assert.NotEmpty(t, GetInfo().Commit)
}
