// Package codec turns uploaded bytes into a raster surface.
package codec

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/raster"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/webp"
)

// Accepted lists the MIME types Decode understands. GIF uploads keep only
// their first frame.
var Accepted = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Sniff reports the detected MIME type of data.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// Decode sniffs data, rejects anything outside Accepted and decodes it with
// EXIF orientation applied.
func Decode(data []byte) (*raster.Surface, error) {
	if len(data) == 0 {
		return nil, &entity.DecodeError{Reason: "empty upload"}
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), Accepted...) {
		return nil, &entity.DecodeError{Reason: fmt.Sprintf("unsupported type %s", mt.String())}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &entity.DecodeError{Reason: "corrupt " + mt.String() + " data", Err: err}
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &entity.DecodeError{Reason: "image has no pixels"}
	}

	return raster.FromImage(img), nil
}
