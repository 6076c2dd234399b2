// Package thumbnail renders design previews. Availability is an explicit
// property of the selected implementation, decided at construction time.
package thumbnail

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Thumbnailer produces a scaled preview of an image file. Callers must check
// Available before calling Generate; a disabled implementation always errors.
type Thumbnailer interface {
	Available() bool
	Generate(sourcePath, destPath string) error
}

// ErrDisabled is returned by Generate on a disabled Thumbnailer.
var ErrDisabled = errors.New("thumbnail generation disabled")

// New selects a Thumbnailer implementation. Box dimensions at or below zero
// disable generation.
func New(enabled bool, maxWidth, maxHeight int) Thumbnailer {
	if !enabled || maxWidth <= 0 || maxHeight <= 0 {
		return disabled{}
	}
	return &boxFit{maxWidth: maxWidth, maxHeight: maxHeight}
}

type disabled struct{}

func (disabled) Available() bool            { return false }
func (disabled) Generate(_, _ string) error { return ErrDisabled }

// boxFit scales the source to fit inside a bounding box, preserving aspect
// ratio and png transparency.
type boxFit struct {
	maxWidth  int
	maxHeight int
}

func (b *boxFit) Available() bool { return true }

func (b *boxFit) Generate(sourcePath, destPath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	img, format, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decode source: %w", err)
	}

	bounds := img.Bounds()
	ratio := math.Min(
		float64(b.maxWidth)/float64(bounds.Dx()),
		float64(b.maxHeight)/float64(bounds.Dy()),
	)
	newWidth := int(math.Round(float64(bounds.Dx()) * ratio))
	newHeight := int(math.Round(float64(bounds.Dy()) * ratio))
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	scaled := resample(img, newWidth, newHeight)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create preview dir: %w", err)
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer dst.Close()

	switch {
	case format == "png" || strings.HasSuffix(strings.ToLower(destPath), ".png"):
		return png.Encode(dst, scaled)
	default:
		return jpeg.Encode(dst, scaled, &jpeg.Options{Quality: 85})
	}
}

// resample performs nearest-neighbour scaling into an NRGBA image so that
// png alpha survives the round trip.
func resample(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	srcBounds := src.Bounds()

	for y := 0; y < height; y++ {
		sy := srcBounds.Min.Y + y*srcBounds.Dy()/height
		for x := 0; x < width; x++ {
			sx := srcBounds.Min.X + x*srcBounds.Dx()/width
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}
