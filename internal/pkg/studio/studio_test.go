package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/pipeline"
	"github.com/ds124wfegd/imagestudio/internal/pkg/raster"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type gatewayFunc func(ctx context.Context, png []byte) ([]byte, error)

func (f gatewayFunc) RemoveBackground(ctx context.Context, png []byte) ([]byte, error) {
	return f(ctx, png)
}

type recordingProducer struct {
	events chan entity.ExportEvent
}

func (p *recordingProducer) PublishExport(_ context.Context, e entity.ExportEvent) error {
	p.events <- e
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func newStudio(t *testing.T, gw Gateway) *Studio {
	t.Helper()
	return New("s1", pipeline.NewEngine(quietLog()), gw, nil, DefaultOptions(), quietLog())
}

func loaded(t *testing.T, gw Gateway) *Studio {
	t.Helper()
	s := newStudio(t, gw)
	_, err := s.Upload(pngBytes(t, 100, 50, color.NRGBA{R: 200, A: 255}))
	require.NoError(t, err)
	return s
}

func TestApplyRequiresImage(t *testing.T) {
	s := newStudio(t, nil)

	_, err := s.Apply(entity.Intent{Type: entity.KindRoundCrop})
	assert.ErrorIs(t, err, entity.ErrNoImage)

	_, err = s.Render(context.Background())
	assert.ErrorIs(t, err, entity.ErrNoImage)

	_, err = s.Export(context.Background(), entity.ExportRequest{})
	assert.ErrorIs(t, err, entity.ErrNoImage)
}

func TestUploadRejectsGarbage(t *testing.T) {
	s := loaded(t, nil)
	_, err := s.Apply(entity.Intent{Type: entity.KindFilter, Name: "blur"})
	require.NoError(t, err)
	before := s.State()

	_, err = s.Upload([]byte("not an image"))
	var derr *entity.DecodeError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, before, s.State())
}

func TestUploadResetsHistory(t *testing.T) {
	s := loaded(t, nil)
	_, err := s.Apply(entity.Intent{Type: entity.KindRoundCrop})
	require.NoError(t, err)

	st, err := s.Upload(pngBytes(t, 10, 20, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)

	assert.True(t, st.HasImage)
	assert.Equal(t, 10, st.Width)
	assert.Equal(t, 20, st.Height)
	assert.Empty(t, st.Edits)
	assert.Equal(t, 0, st.Index)
	assert.False(t, st.CanUndo)
}

func TestApplyUndoRedoClear(t *testing.T) {
	s := loaded(t, nil)

	st, err := s.Apply(entity.Intent{Type: entity.KindResize, Width: 200})
	require.NoError(t, err)
	require.Len(t, st.Edits, 1)

	st, err = s.Apply(entity.Intent{Type: entity.KindPreset, Preset: "square"})
	require.NoError(t, err)
	require.Len(t, st.Edits, 2)
	assert.Equal(t, entity.KindCropRatio, st.Edits[1].Kind)

	st, err = s.Undo()
	require.NoError(t, err)
	assert.Len(t, st.Edits, 1)
	assert.True(t, st.CanRedo)

	st, err = s.Redo()
	require.NoError(t, err)
	assert.Len(t, st.Edits, 2)

	_, err = s.Redo()
	assert.ErrorIs(t, err, entity.ErrNothingToRedo)

	st, err = s.Clear()
	require.NoError(t, err)
	assert.Empty(t, st.Edits)
	assert.True(t, st.CanUndo)

	st, err = s.Undo()
	require.NoError(t, err)
	assert.Len(t, st.Edits, 2)

	_, _ = s.Undo()
	_, _ = s.Undo()
	_, err = s.Undo()
	assert.ErrorIs(t, err, entity.ErrNothingToUndo)
}

func TestApplyRejectsInvalidIntent(t *testing.T) {
	s := loaded(t, nil)
	before := s.State()

	_, err := s.Apply(entity.Intent{Type: entity.KindCropRatio, Ratio: -1})
	var verr *entity.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, before, s.State())
}

func TestRenderUsesCurrentSequence(t *testing.T) {
	s := loaded(t, nil)
	_, err := s.Apply(entity.Intent{Type: entity.KindResize, Width: 200})
	require.NoError(t, err)

	out, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, out.Width())
	assert.Equal(t, 100, out.Height())

	again, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Same(t, out, again)

	_, _ = s.Undo()
	out, err = s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width())
}

// stubRenderer blocks its first call until released and answers every later
// call immediately.
type stubRenderer struct {
	mu          sync.Mutex
	calls       int
	started     chan struct{}
	release     chan struct{}
	honorCancel bool
}

func newStubRenderer(honorCancel bool) *stubRenderer {
	return &stubRenderer{started: make(chan struct{}), release: make(chan struct{}), honorCancel: honorCancel}
}

func (r *stubRenderer) Render(ctx context.Context, src *raster.Surface, seq entity.EditSequence) (*raster.Surface, error) {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()

	if first {
		close(r.started)
		if r.honorCancel {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-r.release:
			}
		} else {
			<-r.release
		}
	}
	return raster.New(len(seq)+1, 1), nil
}

func TestRenderLastRequestWins(t *testing.T) {
	for _, honor := range []bool{true, false} {
		r := newStubRenderer(honor)
		s := New("s1", r, nil, nil, DefaultOptions(), quietLog())
		s.SetSource(raster.New(4, 4))

		type result struct {
			out *raster.Surface
			err error
		}
		first := make(chan result, 1)
		go func() {
			out, err := s.Render(context.Background())
			first <- result{out, err}
		}()
		<-r.started

		_, err := s.Apply(entity.Intent{Type: entity.KindRoundCrop})
		require.NoError(t, err)

		latest, err := s.Render(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, latest.Width())

		close(r.release)
		select {
		case res := <-first:
			assert.ErrorIs(t, res.err, entity.ErrSuperseded)
			assert.Nil(t, res.out)
		case <-time.After(2 * time.Second):
			t.Fatal("stale render never returned")
		}

		preview, err := s.Render(context.Background())
		require.NoError(t, err)
		assert.Same(t, latest, preview, "honorCancel=%v", honor)
	}
}

func TestRenderFailureKeepsPreview(t *testing.T) {
	s := loaded(t, nil)
	good, err := s.Render(context.Background())
	require.NoError(t, err)

	_, err = s.Apply(entity.Intent{Type: entity.KindRoundCrop})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Render(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	s.mu.Lock()
	assert.Same(t, good, s.preview)
	s.mu.Unlock()
}

func TestOversizedResizeFailsRender(t *testing.T) {
	s := newStudio(t, nil)
	_, err := s.Upload(pngBytes(t, 2000, 1, color.NRGBA{G: 90, A: 255}))
	require.NoError(t, err)
	good, err := s.Render(context.Background())
	require.NoError(t, err)

	_, err = s.Apply(entity.Intent{Type: entity.KindResize, Height: 10})
	require.NoError(t, err)

	_, err = s.Render(context.Background())
	var verr *entity.ValidationError
	assert.ErrorAs(t, err, &verr)

	s.mu.Lock()
	assert.Same(t, good, s.preview)
	s.mu.Unlock()
}

func TestExportFormatResolution(t *testing.T) {
	s := loaded(t, nil)

	file, err := s.Export(context.Background(), entity.ExportRequest{})
	require.NoError(t, err)
	assert.Equal(t, entity.FormatPNG, file.Format)
	assert.Equal(t, "edited.png", file.Name)
	assert.Equal(t, "image/png", file.MIME)

	_, err = s.Apply(entity.Intent{Type: entity.KindConvert, Format: "jpg"})
	require.NoError(t, err)

	file, err = s.Export(context.Background(), entity.ExportRequest{Name: "photo.jpeg"})
	require.NoError(t, err)
	assert.Equal(t, entity.FormatJPG, file.Format)
	assert.Equal(t, "photo.jpg", file.Name)
	assert.InDelta(t, 0.92, file.Quality, 1e-9)

	file, err = s.Export(context.Background(), entity.ExportRequest{Format: "webp", Name: "../../x"})
	require.NoError(t, err)
	assert.Equal(t, entity.FormatWebP, file.Format)
	assert.Equal(t, "x.webp", file.Name)

	_, err = s.Export(context.Background(), entity.ExportRequest{Format: "bmp"})
	var verr *entity.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestCompressCapsQuality(t *testing.T) {
	s := loaded(t, nil)
	q := 1.0

	file, err := s.Export(context.Background(), entity.ExportRequest{Format: "jpg", Quality: &q})
	require.NoError(t, err)
	assert.Equal(t, 1.0, file.Quality)

	_, err = s.Apply(entity.Intent{Type: entity.KindCompress})
	require.NoError(t, err)

	file, err = s.Export(context.Background(), entity.ExportRequest{Format: "jpg", Quality: &q})
	require.NoError(t, err)
	assert.Equal(t, 0.6, file.Quality)

	low := 0.3
	file, err = s.Export(context.Background(), entity.ExportRequest{Format: "jpg", Quality: &low})
	require.NoError(t, err)
	assert.Equal(t, 0.3, file.Quality)

	bad := 1.5
	_, err = s.Export(context.Background(), entity.ExportRequest{Quality: &bad})
	assert.Error(t, err)
}

func TestExportPublishesEvent(t *testing.T) {
	events := &recordingProducer{events: make(chan entity.ExportEvent, 1)}
	s := New("s9", pipeline.NewEngine(quietLog()), nil, events, DefaultOptions(), quietLog())
	_, err := s.Upload(pngBytes(t, 8, 6, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)

	file, err := s.ExportArchive(context.Background(), []entity.Format{entity.FormatPNG, entity.FormatJPG}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "edited.zip", file.Name)
	assert.Equal(t, "application/zip", file.MIME)

	select {
	case e := <-events.events:
		assert.Equal(t, "s9", e.SessionID)
		assert.Equal(t, "edited.zip", e.File)
		assert.Equal(t, []entity.Format{entity.FormatPNG, entity.FormatJPG}, e.Formats)
		assert.Equal(t, len(file.Data), e.Bytes)
		assert.Equal(t, 8, e.Width)
	case <-time.After(2 * time.Second):
		t.Fatal("no export event")
	}
}

func TestRemoveBackgroundApplies(t *testing.T) {
	cutout := pngBytes(t, 100, 50, color.NRGBA{R: 200})
	var sent []byte
	s := loaded(t, gatewayFunc(func(_ context.Context, png []byte) ([]byte, error) {
		sent = png
		return cutout, nil
	}))
	_, err := s.Apply(entity.Intent{Type: entity.KindFilter, Name: "grayscale"})
	require.NoError(t, err)

	st, err := s.RemoveBackground(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, sent)
	require.Len(t, st.Edits, 2)
	assert.Equal(t, entity.KindReplaceImage, st.Edits[1].Kind)
	assert.True(t, st.CanUndo)

	out, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.At(10, 10).A)
}

// TestGatewayFailureKeepsHistory checks that a rejected call leaves the
// sequence and the history index where they were.
func TestGatewayFailureKeepsHistory(t *testing.T) {
	tests := []struct {
		name string
		gw   gatewayFunc
	}{
		{name: "upstream error", gw: func(context.Context, []byte) ([]byte, error) {
			return nil, &entity.GatewayError{Status: 402, Body: "quota exceeded"}
		}},
		{name: "unreadable reply", gw: func(context.Context, []byte) ([]byte, error) {
			return []byte("<html>oops</html>"), nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loaded(t, tt.gw)
			_, err := s.Apply(entity.Intent{Type: entity.KindRoundCrop})
			require.NoError(t, err)
			before := s.State()

			_, err = s.RemoveBackground(context.Background())
			var gerr *entity.GatewayError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, before, s.State())
		})
	}
}

func TestRemoveBackgroundSupersededByEdit(t *testing.T) {
	var s *Studio
	s = loaded(t, gatewayFunc(func(_ context.Context, _ []byte) ([]byte, error) {
		// the user keeps editing while the gateway works
		_, err := s.Apply(entity.Intent{Type: entity.KindRoundCrop})
		require.NoError(t, err)
		return pngBytes(t, 4, 4, color.NRGBA{}), nil
	}))

	_, err := s.RemoveBackground(context.Background())
	assert.ErrorIs(t, err, entity.ErrSuperseded)

	st := s.State()
	require.Len(t, st.Edits, 1)
	assert.Equal(t, entity.KindRoundCrop, st.Edits[0].Kind)
}

func TestRemoveBackgroundDisabled(t *testing.T) {
	s := loaded(t, nil)
	_, err := s.RemoveBackground(context.Background())
	assert.ErrorIs(t, err, entity.ErrGatewayDisabled)
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"":              "edited",
		"  ":            "edited",
		"photo":         "photo",
		"photo.png":     "photo",
		"../etc/passwd": "passwd",
		"/":             "edited",
		"dir/sub/pic":   "pic",
	}
	for in, want := range tests {
		assert.Equal(t, want, baseName(in), in)
	}
}
