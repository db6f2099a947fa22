package services

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/bazaar/backend/internal/models"
)

const (
	DefaultCompressMaxWidth = 1280
	DefaultCompressQuality  = 70
)

// ImagingCompressor downsizes images to MaxWidth and re-encodes them as JPEG,
// or as PNG when the image has transparent pixels. Images narrower than
// MaxWidth are re-encoded without resizing.
type ImagingCompressor struct {
	MaxWidth int
	Quality  int
}

func NewImagingCompressor(maxWidth, quality int) *ImagingCompressor {
	if maxWidth <= 0 {
		maxWidth = DefaultCompressMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultCompressQuality
	}
	return &ImagingCompressor{MaxWidth: maxWidth, Quality: quality}
}

func (c *ImagingCompressor) Compress(img models.ImageInput) (models.ImageInput, error) {
	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return img, fmt.Errorf("decode %s: %w", img.Filename, err)
	}

	if src.Bounds().Dx() > c.MaxWidth {
		src = imaging.Resize(src, c.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if !isOpaque(src) {
		if err := imaging.Encode(&buf, src, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return img, fmt.Errorf("encode %s: %w", img.Filename, err)
		}
		return models.ImageInput{
			Filename:    renameExt(img.Filename, ".png"),
			ContentType: "image/png",
			Data:        buf.Bytes(),
		}, nil
	}

	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(c.Quality)); err != nil {
		return img, fmt.Errorf("encode %s: %w", img.Filename, err)
	}

	return models.ImageInput{
		Filename:    renameExt(img.Filename, ".jpg"),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

func renameExt(name, ext string) string {
	if name == "" {
		return "image" + ext
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
