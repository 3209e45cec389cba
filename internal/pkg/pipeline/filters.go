package pipeline

import (
	"fmt"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/raster"
)

const (
	blurSigma     = 3.0
	adjustPercent = 20.0
)

func filter(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	img := cur.Image()
	switch e.Filter {
	case entity.FilterGrayscale:
		return raster.Wrap(imaging.Grayscale(img)), nil
	case entity.FilterSepia:
		return raster.Wrap(imaging.AdjustFunc(img, sepia)), nil
	case entity.FilterBlur:
		return raster.Wrap(imaging.Blur(img, blurSigma)), nil
	case entity.FilterBrightness:
		return raster.Wrap(imaging.AdjustBrightness(img, adjustPercent)), nil
	case entity.FilterContrast:
		return raster.Wrap(imaging.AdjustContrast(img, adjustPercent)), nil
	}
	return nil, fmt.Errorf("unknown filter %q", e.Filter)
}

// sepia applies the full-strength sepia matrix used by CSS filters.
func sepia(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.NRGBA{
		R: clamp8(0.393*r + 0.769*g + 0.189*b),
		G: clamp8(0.349*r + 0.686*g + 0.168*b),
		B: clamp8(0.272*r + 0.534*g + 0.131*b),
		A: c.A,
	}
}

func clamp8(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(math.Round(v))
}
