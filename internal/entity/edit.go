package entity

import "github.com/ds124wfegd/imagestudio/internal/pkg/raster"

type Kind string

const (
	KindReplaceImage Kind = "replace-image"
	KindBgColor      Kind = "bg-color"
	KindBgImage      Kind = "bg-image"
	KindResize       Kind = "resize"
	KindCropRatio    Kind = "crop-ratio"
	KindFilter       Kind = "filter"
	KindWatermark    Kind = "watermark"
	KindRoundCrop    Kind = "round-crop"
	KindCompress     Kind = "compress"
	KindConvert      Kind = "convert"

	// KindPreset only exists on intents; NewEdit expands it to resize or crop-ratio.
	KindPreset Kind = "preset"
)

// NeedsRaster reports whether edits of this kind carry an image payload.
func (k Kind) NeedsRaster() bool {
	return k == KindReplaceImage || k == KindBgImage
}

type FilterName string

const (
	FilterGrayscale  FilterName = "grayscale"
	FilterSepia      FilterName = "sepia"
	FilterBlur       FilterName = "blur"
	FilterBrightness FilterName = "brightness"
	FilterContrast   FilterName = "contrast"
)

// Edit is one validated transformation. Only the fields of its Kind are set.
// compress and convert carry no pixel effect: the pipeline skips them and the
// export step reads them to pick quality and encoding.
type Edit struct {
	Kind   Kind            `json:"type"`
	Raster *raster.Surface `json:"-"`
	Color  string          `json:"color,omitempty"`
	Fill   Color           `json:"-"`
	Width  int             `json:"width,omitempty"`
	Height int             `json:"height,omitempty"`
	Ratio  float64         `json:"ratio,omitempty"`
	Filter FilterName      `json:"name,omitempty"`
	Text   string          `json:"text,omitempty"`
	Format Format          `json:"format,omitempty"`
}

// EditSequence is applied in order; it is the unit stored by the history.
type EditSequence []Edit

// Clone returns a copy that shares no backing array with s. Rasters are
// immutable once attached to an edit, so they are shared.
func (s EditSequence) Clone() EditSequence {
	out := make(EditSequence, len(s))
	copy(out, s)
	return out
}

// Append returns a new sequence with e added; s is left untouched.
func (s EditSequence) Append(e Edit) EditSequence {
	out := make(EditSequence, len(s), len(s)+1)
	copy(out, s)
	return append(out, e)
}

// ExportFormat returns the format chosen by the last convert edit.
func (s EditSequence) ExportFormat() (Format, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Kind == KindConvert {
			return s[i].Format, true
		}
	}
	return "", false
}

// Compressed reports whether any compress edit is present.
func (s EditSequence) Compressed() bool {
	for _, e := range s {
		if e.Kind == KindCompress {
			return true
		}
	}
	return false
}

// Intent is an unvalidated edit request coming from the UI or a recipe file.
type Intent struct {
	Type   Kind    `json:"type" yaml:"type" binding:"required"`
	Color  string  `json:"color,omitempty" yaml:"color,omitempty"`
	Width  int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height int     `json:"height,omitempty" yaml:"height,omitempty"`
	Ratio  float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Text   string  `json:"text,omitempty" yaml:"text,omitempty"`
	Format string  `json:"format,omitempty" yaml:"format,omitempty"`
	Preset string  `json:"preset,omitempty" yaml:"preset,omitempty"`

	// Image is a recipe-relative path for raster-bearing intents.
	Image  string          `json:"-" yaml:"image,omitempty"`
	Raster *raster.Surface `json:"-" yaml:"-"`
}

// Preset is a named shortcut from the resize menu.
type Preset struct {
	Key    string
	Label  string
	Ratio  float64
	Width  int
	Height int
}

var Presets = []Preset{
	{Key: "square", Label: "1:1 (Square)", Ratio: 1},
	{Key: "ig-pfp", Label: "Instagram PFP 320x320", Width: 320, Height: 320},
	{Key: "ig-post", Label: "Instagram Post 1080x1080", Width: 1080, Height: 1080},
	{Key: "li-banner", Label: "LinkedIn Banner 1584x396", Width: 1584, Height: 396},
}

func LookupPreset(key string) (Preset, bool) {
	for _, p := range Presets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}
