package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestRenderProducesPNG(t *testing.T) {
	png, err := Render("CONF-2026-A1B2C3", "Quantum Crew")
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "output must be a PNG")
}

func TestRendererSatisfiesInterface(t *testing.T) {
	png, err := Renderer{}.Render("CONF-2026-A1B2C3", "Quantum Crew")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}
