package inference

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/image/tiff"

	"github.com/samirrijal/superres/internal/core/domain"
)

// Fixture stands in for the real model. It renders a synthetic scene as a
// GeoTIFF plus a PNG preview, which is enough to drive the whole pipeline
// on machines without a GPU.
type Fixture struct {
	fs    afero.Fs
	size  int
	delay time.Duration
}

// NewFixture writes size x size rasters through fs after waiting delay.
func NewFixture(fs afero.Fs, size int, delay time.Duration) *Fixture {
	if size <= 0 {
		size = 256
	}
	return &Fixture{fs: fs, size: size, delay: delay}
}

// Run writes the fixture rasters into req.WorkDir.
func (f *Fixture) Run(ctx context.Context, req domain.InferenceRequest) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return &domain.ExecutionError{Message: "run aborted: " + ctx.Err().Error(), Err: ctx.Err()}
		}
	}

	img := f.render(req.Location)
	base := fmt.Sprintf("S2L2Ax10_%.5f_%.5f_%s", req.Location.Lat, req.Location.Lon, req.Date)

	var tif bytes.Buffer
	if err := tiff.Encode(&tif, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return &domain.ExecutionError{Message: "encode tiff", Err: err}
	}
	if err := afero.WriteFile(f.fs, filepath.Join(req.WorkDir, base+"_MS.tif"), tif.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write tiff: %w", err)
	}

	var preview bytes.Buffer
	if err := png.Encode(&preview, img); err != nil {
		return &domain.ExecutionError{Message: "encode png", Err: err}
	}
	if err := afero.WriteFile(f.fs, filepath.Join(req.WorkDir, base+"_TCI.png"), preview.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// Ping always succeeds.
func (f *Fixture) Ping(context.Context) error {
	return nil
}

// render draws a gradient seeded by the location so different jobs differ.
func (f *Fixture) render(loc domain.GeoPoint) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.size, f.size))
	shift := uint8(int(loc.Lat*7+loc.Lon*3) & 0xff)
	for y := 0; y < f.size; y++ {
		for x := 0; x < f.size; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x*255/f.size) + shift,
				G: uint8(y*255/f.size) + shift/2,
				B: 96,
				A: 255,
			})
		}
	}
	return img
}
