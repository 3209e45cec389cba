// Package raster holds the pixel surface every edit step draws on.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Surface is a non-premultiplied RGBA pixel buffer anchored at the origin.
type Surface struct {
	img *image.NRGBA
}

// New returns a fully transparent surface.
func New(width, height int) *Surface {
	return &Surface{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// FromImage copies img into a new surface.
func FromImage(img image.Image) *Surface {
	return &Surface{img: imaging.Clone(img)}
}

// Wrap adopts img without copying. img must be anchored at the origin and
// must not be modified by the caller afterwards.
func Wrap(img *image.NRGBA) *Surface {
	return &Surface{img: img}
}

func (s *Surface) Width() int  { return s.img.Rect.Dx() }
func (s *Surface) Height() int { return s.img.Rect.Dy() }

func (s *Surface) Bounds() image.Rectangle { return s.img.Rect }

// Image exposes the backing buffer for read-only use (encoders, resamplers).
func (s *Surface) Image() *image.NRGBA { return s.img }

func (s *Surface) Clone() *Surface {
	return Wrap(imaging.Clone(s.img))
}

// CopyFrom replaces the content and size of s with a copy of other.
func (s *Surface) CopyFrom(other *Surface) {
	s.img = imaging.Clone(other.img)
}

// FillRect composites an opaque or translucent color over r.
func (s *Surface) FillRect(r image.Rectangle, c color.Color) {
	draw.Draw(s.img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// DrawImage composites img over s with its top-left corner at at.
func (s *Surface) DrawImage(img image.Image, at image.Point) {
	b := img.Bounds()
	draw.Draw(s.img, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, draw.Over)
}

// DrawImageScaled stretches img to fill dst and composites it over s.
func (s *Surface) DrawImageScaled(img image.Image, dst image.Rectangle) {
	if img.Bounds().Size() == dst.Size() {
		s.DrawImage(img, dst.Min)
		return
	}
	xdraw.CatmullRom.Scale(s.img, dst, img, img.Bounds(), xdraw.Over, nil)
}

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847498

// ClipCircle keeps only the pixels inside the circle at (cx, cy) with radius r.
// The edge is anti-aliased; pixels entirely outside become fully transparent.
func (s *Surface) ClipCircle(cx, cy, r float64) {
	w, h := s.Width(), s.Height()
	if w == 0 || h == 0 {
		return
	}

	x, y, rr, k := float32(cx), float32(cy), float32(r), float32(kappa*r)
	z := vector.NewRasterizer(w, h)
	z.MoveTo(x+rr, y)
	z.CubeTo(x+rr, y+k, x+k, y+rr, x, y+rr)
	z.CubeTo(x-k, y+rr, x-rr, y+k, x-rr, y)
	z.CubeTo(x-rr, y-k, x-k, y-rr, x, y-rr)
	z.CubeTo(x+k, y-rr, x+rr, y-k, x+rr, y)
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	for py := 0; py < h; py++ {
		row := s.img.Pix[py*s.img.Stride : py*s.img.Stride+w*4]
		mrow := mask.Pix[py*mask.Stride : py*mask.Stride+w]
		for px, cov := range mrow {
			a := &row[px*4+3]
			switch cov {
			case 0xff:
			case 0:
				row[px*4], row[px*4+1], row[px*4+2], *a = 0, 0, 0, 0
			default:
				*a = uint8((uint32(*a)*uint32(cov) + 0x7f) / 0xff)
			}
		}
	}
}

// DrawText renders text with its baseline starting at dot. No wrapping or clipping.
func (s *Surface) DrawText(text string, face font.Face, c color.Color, dot image.Point) {
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(dot.X, dot.Y),
	}
	d.DrawString(text)
}

// Pixels returns a copy of the pixel buffer, four bytes per pixel, row by row.
func (s *Surface) Pixels() []uint8 {
	w, h := s.Width(), s.Height()
	out := make([]uint8, 0, w*h*4)
	for y := 0; y < h; y++ {
		out = append(out, s.img.Pix[y*s.img.Stride:y*s.img.Stride+w*4]...)
	}
	return out
}

// PutPixels overwrites the buffer with p, laid out as Pixels returns it.
func (s *Surface) PutPixels(p []uint8) error {
	w, h := s.Width(), s.Height()
	if len(p) != w*h*4 {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(p), w*h*4)
	}
	for y := 0; y < h; y++ {
		copy(s.img.Pix[y*s.img.Stride:y*s.img.Stride+w*4], p[y*w*4:(y+1)*w*4])
	}
	return nil
}

// At returns the pixel at (x, y).
func (s *Surface) At(x, y int) color.NRGBA {
	return s.img.NRGBAAt(x, y)
}

// Equal reports whether both surfaces have the same size and identical pixels.
func (s *Surface) Equal(other *Surface) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Bounds().Size() != other.Bounds().Size() {
		return false
	}
	w := s.Width() * 4
	for y := 0; y < s.Height(); y++ {
		a := s.img.Pix[y*s.img.Stride : y*s.img.Stride+w]
		b := other.img.Pix[y*other.img.Stride : y*other.img.Stride+w]
		if string(a) != string(b) {
			return false
		}
	}
	return true
}
