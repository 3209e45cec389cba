// Package export serializes a rendered raster to image files and archives.
package export

import (
	"bytes"
	"errors"
	"image"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagestudio/internal/entity"
)

// Encode serializes img. quality is in [0, 1] and is ignored for png.
func Encode(img image.Image, format entity.Format, quality float64) ([]byte, error) {
	if img == nil {
		return nil, &entity.EncodeError{Format: format, Err: errors.New("nothing to encode")}
	}
	quality = clampQuality(quality)

	var buf bytes.Buffer
	var err error
	switch format {
	case entity.FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case entity.FormatJPG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality)))
	case entity.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality * 100)})
	default:
		err = errors.New("unsupported format")
	}
	if err != nil {
		return nil, &entity.EncodeError{Format: format, Err: err}
	}
	return buf.Bytes(), nil
}

// jpegQuality maps [0, 1] onto the 1..100 scale the JPEG encoder accepts.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampQuality(q float64) float64 {
	if math.IsNaN(q) || q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}
