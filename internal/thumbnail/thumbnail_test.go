package thumbnail_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printmill/printmill/internal/thumbnail"
)

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 80, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestGenerateFitsInsideBox(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "design.png")
	dst := filepath.Join(dir, "previews", "design.png")
	writeTestPNG(t, src, 800, 400)

	tn := thumbnail.New(true, 300, 300)
	require.True(t, tn.Available())
	require.NoError(t, tn.Generate(src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestGenerateMissingSource(t *testing.T) {
	tn := thumbnail.New(true, 300, 300)

	err := tn.Generate(filepath.Join(t.TempDir(), "nope.png"), filepath.Join(t.TempDir(), "out.png"))
	assert.Error(t, err)
}

func TestDisabledThumbnailer(t *testing.T) {
	tn := thumbnail.New(false, 300, 300)

	assert.False(t, tn.Available())
	assert.ErrorIs(t, tn.Generate("a", "b"), thumbnail.ErrDisabled)
}
