package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMRU(t *testing.T) {
	t.Parallel()

	m := NewMRU(3, "<AZ><az><09>", "<AZ><az>")
	assert.Equal(t, []string{"<AZ><az><09>", "<AZ><az>"}, m.Entries())

	m.Add("<hex>")
	m.Add("<AZ><az>")
	assert.Equal(t, []string{"<AZ><az>", "<hex>", "<AZ><az><09>"}, m.Entries())

	m.Add("<09>")
	assert.Equal(t, []string{"<09>", "<AZ><az>", "<hex>"}, m.Entries())

	m.Add("")
	m.Remove("<hex>")
	assert.Equal(t, []string{"<09>", "<AZ><az>"}, m.Entries())

	latest, ok := m.Latest()
	assert.True(t, ok)
	assert.Equal(t, "<09>", latest)

	_, ok = NewMRU(1).Latest()
	assert.False(t, ok)
}
