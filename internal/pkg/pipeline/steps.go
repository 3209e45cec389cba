package pipeline

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/raster"
)

// step receives a surface owned by the current render and returns the next
// one. It may draw on cur in place but must not touch e.Raster.
type step func(cur *raster.Surface, e entity.Edit) (*raster.Surface, error)

var steps = map[entity.Kind]step{
	entity.KindReplaceImage: replaceImage,
	entity.KindBgColor:      bgColor,
	entity.KindBgImage:      bgImage,
	entity.KindResize:       resize,
	entity.KindCropRatio:    cropRatio,
	entity.KindFilter:       filter,
	entity.KindWatermark:    watermark,
	entity.KindRoundCrop:    roundCrop,

	// compress and convert only change how the result is encoded on export.
	// They stay in the sequence as a record of what the user asked for.
	entity.KindCompress: passthrough,
	entity.KindConvert:  passthrough,
}

const (
	watermarkSize   = 24
	watermarkMargin = 16
)

var watermarkColor = entity.Color{A: 153}

func passthrough(cur *raster.Surface, _ entity.Edit) (*raster.Surface, error) {
	return cur, nil
}

func replaceImage(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	if e.Raster == nil {
		return cur, nil
	}
	return e.Raster.Clone(), nil
}

func bgColor(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	out := raster.New(cur.Width(), cur.Height())
	out.FillRect(out.Bounds(), e.Fill)
	out.DrawImage(cur.Image(), image.Point{})
	return out, nil
}

// bgImage grows the canvas to fit both images, stretches the overlay across
// it and draws the current image over it at the origin.
func bgImage(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	if e.Raster == nil {
		return cur, nil
	}
	w := max(cur.Width(), e.Raster.Width())
	h := max(cur.Height(), e.Raster.Height())

	out := raster.New(w, h)
	out.DrawImageScaled(e.Raster.Image(), out.Bounds())
	out.DrawImage(cur.Image(), image.Point{})
	return out, nil
}

func resize(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	w, h := resizeTarget(cur.Width(), cur.Height(), e.Width, e.Height)
	if w > entity.MaxDimension || h > entity.MaxDimension {
		return nil, &entity.ValidationError{
			Kind:   entity.KindResize,
			Reason: fmt.Sprintf("result %dx%d exceeds %d pixels per side", w, h, entity.MaxDimension),
		}
	}
	if w == cur.Width() && h == cur.Height() {
		return cur, nil
	}
	return raster.Wrap(imaging.Resize(cur.Image(), w, h, imaging.Lanczos)), nil
}

// resizeTarget fills in a missing dimension from the source aspect ratio.
func resizeTarget(srcW, srcH, w, h int) (int, int) {
	switch {
	case w > 0 && h > 0:
		return w, h
	case w > 0:
		return w, atLeastOne(math.Round(float64(srcH) * float64(w) / float64(srcW)))
	case h > 0:
		return atLeastOne(math.Round(float64(srcW) * float64(h) / float64(srcH))), h
	}
	return srcW, srcH
}

func cropRatio(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	w, h := cur.Width(), cur.Height()
	cropW, cropH := w, h
	if float64(w)/float64(h) > e.Ratio {
		cropW = atLeastOne(math.Round(float64(h) * e.Ratio))
	} else {
		cropH = atLeastOne(math.Round(float64(w) / e.Ratio))
	}

	x := int(math.Round(float64(w-cropW) / 2))
	y := int(math.Round(float64(h-cropH) / 2))
	return raster.Wrap(imaging.Crop(cur.Image(), image.Rect(x, y, x+cropW, y+cropH))), nil
}

func roundCrop(cur *raster.Surface, _ entity.Edit) (*raster.Surface, error) {
	w, h := cur.Width(), cur.Height()
	size := min(w, h)
	x, y := (w-size)/2, (h-size)/2

	out := raster.Wrap(imaging.Crop(cur.Image(), image.Rect(x, y, x+size, y+size)))
	r := float64(size) / 2
	out.ClipCircle(r, r, r)
	return out, nil
}

func watermark(cur *raster.Surface, e entity.Edit) (*raster.Surface, error) {
	face, err := raster.NewFace(watermarkSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	cur.DrawText(e.Text, face, watermarkColor, image.Pt(watermarkMargin, cur.Height()-watermarkMargin))
	return cur, nil
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}
