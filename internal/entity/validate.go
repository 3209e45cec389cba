package entity

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxDimension bounds resize targets so a typo cannot allocate gigabytes.
const MaxDimension = 16384

var validate = validator.New()

// NewEdit validates an intent and turns it into an Edit. Every field the
// variant needs is checked here, whatever the UI already enforced.
func NewEdit(in Intent) (Edit, error) {
	switch in.Type {
	case KindReplaceImage, KindBgImage:
		if in.Raster == nil || in.Raster.Width() == 0 || in.Raster.Height() == 0 {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "image", Reason: "an image is required"}
		}
		return Edit{Kind: in.Type, Raster: in.Raster}, nil

	case KindBgColor:
		if err := checkVar(in.Type, "color", in.Color, "required"); err != nil {
			return Edit{}, err
		}
		c, err := ParseHexColor(in.Color)
		if err != nil {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "color", Reason: err.Error()}
		}
		if c.A != 0xff {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "color", Reason: "background color must be opaque"}
		}
		return Edit{Kind: in.Type, Color: in.Color, Fill: c}, nil

	case KindResize:
		rule := fmt.Sprintf("gte=0,lte=%d", MaxDimension)
		if err := checkVar(in.Type, "width", in.Width, rule); err != nil {
			return Edit{}, err
		}
		if err := checkVar(in.Type, "height", in.Height, rule); err != nil {
			return Edit{}, err
		}
		if in.Width == 0 && in.Height == 0 {
			return Edit{}, &ValidationError{Kind: in.Type, Reason: "width or height is required"}
		}
		return Edit{Kind: in.Type, Width: in.Width, Height: in.Height}, nil

	case KindCropRatio:
		if err := checkVar(in.Type, "ratio", in.Ratio, "gt=0"); err != nil {
			return Edit{}, err
		}
		if math.IsInf(in.Ratio, 0) {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "ratio", Reason: "must be finite"}
		}
		return Edit{Kind: in.Type, Ratio: in.Ratio}, nil

	case KindFilter:
		if err := checkVar(in.Type, "name", in.Name, "required,oneof=grayscale sepia blur brightness contrast"); err != nil {
			return Edit{}, err
		}
		return Edit{Kind: in.Type, Filter: FilterName(in.Name)}, nil

	case KindWatermark:
		if strings.TrimSpace(in.Text) == "" {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "text", Reason: "text is required"}
		}
		return Edit{Kind: in.Type, Text: in.Text}, nil

	case KindRoundCrop, KindCompress:
		return Edit{Kind: in.Type}, nil

	case KindConvert:
		f, err := ParseFormat(in.Format)
		if err != nil {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "format", Reason: err.Error()}
		}
		return Edit{Kind: in.Type, Format: f}, nil

	case KindPreset:
		p, ok := LookupPreset(in.Preset)
		if !ok {
			return Edit{}, &ValidationError{Kind: in.Type, Field: "preset", Reason: fmt.Sprintf("unknown preset %q", in.Preset)}
		}
		if p.Ratio > 0 {
			return Edit{Kind: KindCropRatio, Ratio: p.Ratio}, nil
		}
		return Edit{Kind: KindResize, Width: p.Width, Height: p.Height}, nil
	}

	return Edit{}, &ValidationError{Kind: in.Type, Field: "type", Reason: fmt.Sprintf("unknown edit type %q", in.Type)}
}

func checkVar(kind Kind, field string, value interface{}, rule string) error {
	err := validate.Var(value, rule)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ValidationError{Kind: kind, Field: field, Reason: reason}
	}
	return &ValidationError{Kind: kind, Field: field, Reason: err.Error()}
}
