package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// Archive encodes img once per format, in parallel, and packs the results
// into a zip with entries named {base}.{format} in request order. Repeated
// formats produce a single entry.
func Archive(ctx context.Context, img image.Image, formats []entity.Format, quality float64, base string) ([]byte, error) {
	formats = dedupe(formats)
	if len(formats) == 0 {
		return nil, &entity.EncodeError{Format: "zip", Err: errors.New("no formats requested")}
	}

	encoded := make([][]byte, len(formats))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := Encode(img, f, quality)
			if err != nil {
				return err
			}
			encoded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for i, f := range formats {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.FileName(base),
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, &entity.EncodeError{Format: "zip", Err: err}
		}
		if _, err := w.Write(encoded[i]); err != nil {
			return nil, &entity.EncodeError{Format: "zip", Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &entity.EncodeError{Format: "zip", Err: err}
	}

	return buf.Bytes(), nil
}

func dedupe(formats []entity.Format) []entity.Format {
	out := make([]entity.Format, 0, len(formats))
	seen := make(map[entity.Format]bool, len(formats))
	for _, f := range formats {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
