package artifacts

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder registration
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
)

// ErrUnsupportedRaster is returned when a raster cannot be decoded for preview,
// e.g. multi-band 16-bit GeoTIFFs.
var ErrUnsupportedRaster = errors.New("raster format not supported for preview")

// Thumbnail decodes an artifact and returns a PNG scaled to fit within
// maxSize x maxSize, keeping the aspect ratio.
func (s *Store) Thumbnail(dir, name string, maxSize int) ([]byte, error) {
	f, _, err := s.Open(dir, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRaster, err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}
	if width >= height {
		h := height * maxSize / width
		if h < 1 {
			h = 1
		}
		return maxSize, h
	}
	w := width * maxSize / height
	if w < 1 {
		w = 1
	}
	return w, maxSize
}
