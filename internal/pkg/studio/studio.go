// Package studio ties the edit model, pipeline, history and export together
// into one editing session.
package studio

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/codec"
	"github.com/ds124wfegd/imagestudio/internal/pkg/export"
	"github.com/ds124wfegd/imagestudio/internal/pkg/history"
	"github.com/ds124wfegd/imagestudio/internal/pkg/kafka"
	"github.com/ds124wfegd/imagestudio/internal/pkg/raster"
	"github.com/sirupsen/logrus"
)

const DefaultName = "edited"

type Renderer interface {
	Render(ctx context.Context, src *raster.Surface, seq entity.EditSequence) (*raster.Surface, error)
}

type Gateway interface {
	RemoveBackground(ctx context.Context, png []byte) ([]byte, error)
}

type Options struct {
	DefaultFormat   entity.Format
	DefaultQuality  float64
	CompressQuality float64
}

func DefaultOptions() Options {
	return Options{
		DefaultFormat:   entity.FormatPNG,
		DefaultQuality:  0.92,
		CompressQuality: 0.6,
	}
}

// Studio is one editing session. All exported methods are safe for
// concurrent use; the lock is never held while rendering, encoding or
// waiting on the gateway.
type Studio struct {
	id       string
	renderer Renderer
	gateway  Gateway
	events   kafka.Producer
	opts     Options
	log      *logrus.Entry

	mu      sync.Mutex
	source  *raster.Surface
	history *history.History
	// version changes on every upload and history move.
	version uint64
	// issued is the ticket of the most recent Render call.
	issued  uint64
	cancel  context.CancelFunc
	preview *raster.Surface
	// previewVersion is the version the preview was rendered from.
	previewVersion uint64
}

// New builds a session. gateway may be nil when background removal is not
// configured; events may be nil to skip export events.
func New(id string, renderer Renderer, gateway Gateway, events kafka.Producer, opts Options, log *logrus.Entry) *Studio {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if events == nil {
		events = kafka.NewNoopProducer(log)
	}
	return &Studio{
		id:       id,
		renderer: renderer,
		gateway:  gateway,
		events:   events,
		opts:     opts,
		log:      log.WithField("session", id),
		history:  history.New(),
	}
}

func (s *Studio) ID() string { return s.id }

// Upload decodes data and makes it the new source with an empty history.
// A decode failure leaves the session as it was.
func (s *Studio) Upload(data []byte) (entity.SessionState, error) {
	src, err := codec.Decode(data)
	if err != nil {
		return s.State(), err
	}
	return s.SetSource(src), nil
}

// SetSource installs an already decoded raster as the source.
func (s *Studio) SetSource(src *raster.Surface) entity.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = src
	s.history.Reset(entity.EditSequence{})
	s.version++
	s.supersedeLocked()
	s.preview = nil

	s.log.WithFields(logrus.Fields{"width": src.Width(), "height": src.Height()}).Info("image loaded")
	return s.stateLocked()
}

// Apply validates the intent and pushes current+edit onto the history.
func (s *Studio) Apply(in entity.Intent) (entity.SessionState, error) {
	if !s.hasImage() {
		return s.State(), entity.ErrNoImage
	}
	edit, err := entity.NewEdit(in)
	if err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Push(s.history.Current().Append(edit))
	s.version++

	s.log.WithField("edit", edit.Kind).Info("edit applied")
	return s.stateLocked(), nil
}

func (s *Studio) Undo() (entity.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history.Undo(); !ok {
		return s.stateLocked(), entity.ErrNothingToUndo
	}
	s.version++
	return s.stateLocked(), nil
}

func (s *Studio) Redo() (entity.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.history.Redo(); !ok {
		return s.stateLocked(), entity.ErrNothingToRedo
	}
	s.version++
	return s.stateLocked(), nil
}

// Clear pushes an empty sequence, so it can be undone. Clearing an already
// empty sequence does nothing.
func (s *Studio) Clear() (entity.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return s.stateLocked(), entity.ErrNoImage
	}
	if len(s.history.Current()) == 0 {
		return s.stateLocked(), nil
	}
	s.history.Push(entity.EditSequence{})
	s.version++
	return s.stateLocked(), nil
}

func (s *Studio) State() entity.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Studio) stateLocked() entity.SessionState {
	st := entity.SessionState{
		ID:       s.id,
		HasImage: s.source != nil,
		Edits:    s.history.Current(),
		Index:    s.history.Index(),
		Length:   s.history.Len(),
		CanUndo:  s.history.CanUndo(),
		CanRedo:  s.history.CanRedo(),
	}
	if s.source != nil {
		st.Width, st.Height = s.source.Width(), s.source.Height()
	}
	return st
}

// Render renders the current state for display. Each call takes a ticket
// and cancels the render of the previous ticket; a result is published as
// the preview only if its ticket is still the newest, otherwise the call
// returns entity.ErrSuperseded. Failed renders never touch the preview.
func (s *Studio) Render(ctx context.Context) (*raster.Surface, error) {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return nil, entity.ErrNoImage
	}
	if s.preview != nil && s.previewVersion == s.version {
		out := s.preview
		s.mu.Unlock()
		return out, nil
	}
	s.supersedeLocked()
	ticket := s.issued
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	src, seq, version := s.source, s.history.Current(), s.version
	s.mu.Unlock()
	defer cancel()

	out, err := s.renderer.Render(rctx, src, seq)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.issued {
		return nil, entity.ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		s.log.WithError(err).Warn("render failed")
		return nil, err
	}
	s.preview = out
	s.previewVersion = version
	return out, nil
}

// supersedeLocked invalidates the in-flight render, if any.
func (s *Studio) supersedeLocked() {
	s.issued++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Export renders the current state and encodes it as a single file.
func (s *Studio) Export(ctx context.Context, req entity.ExportRequest) (entity.ExportFile, error) {
	img, seq, err := s.renderCurrent(ctx)
	if err != nil {
		return entity.ExportFile{}, err
	}

	format, err := s.resolveFormat(req.Format, seq)
	if err != nil {
		return entity.ExportFile{}, err
	}
	quality, err := s.resolveQuality(req.Quality, seq)
	if err != nil {
		return entity.ExportFile{}, err
	}

	data, err := export.Encode(img.Image(), format, quality)
	if err != nil {
		return entity.ExportFile{}, err
	}

	file := entity.ExportFile{
		Name:    format.FileName(baseName(req.Name)),
		MIME:    format.MIMEType(),
		Format:  format,
		Quality: quality,
		Data:    data,
	}
	s.publish(file, []entity.Format{format}, img)
	return file, nil
}

// ExportArchive encodes the current state once per format into a zip.
func (s *Studio) ExportArchive(ctx context.Context, formats []entity.Format, q *float64, name string) (entity.ExportFile, error) {
	if len(formats) == 0 {
		formats = entity.Formats
	}

	img, seq, err := s.renderCurrent(ctx)
	if err != nil {
		return entity.ExportFile{}, err
	}
	quality, err := s.resolveQuality(q, seq)
	if err != nil {
		return entity.ExportFile{}, err
	}

	base := baseName(name)
	data, err := export.Archive(ctx, img.Image(), formats, quality, base)
	if err != nil {
		return entity.ExportFile{}, err
	}

	file := entity.ExportFile{
		Name:    base + ".zip",
		MIME:    "application/zip",
		Format:  "zip",
		Quality: quality,
		Data:    data,
	}
	s.publish(file, formats, img)
	return file, nil
}

// RemoveBackground sends the current render to the gateway and applies the
// result as a replace-image edit. If anything fails, or the history moved
// while the gateway was busy, the history is left untouched.
func (s *Studio) RemoveBackground(ctx context.Context) (entity.SessionState, error) {
	if s.gateway == nil {
		return s.State(), entity.ErrGatewayDisabled
	}

	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	img, _, err := s.renderCurrent(ctx)
	if err != nil {
		return s.State(), err
	}
	png, err := export.Encode(img.Image(), entity.FormatPNG, 1)
	if err != nil {
		return s.State(), err
	}

	start := time.Now()
	out, err := s.gateway.RemoveBackground(ctx, png)
	if err != nil {
		s.log.WithError(err).Warn("background removal failed")
		return s.State(), err
	}

	cutout, err := codec.Decode(out)
	if err != nil {
		return s.State(), &entity.GatewayError{Err: fmt.Errorf("unreadable response: %w", err)}
	}
	edit, err := entity.NewEdit(entity.Intent{Type: entity.KindReplaceImage, Raster: cutout})
	if err != nil {
		return s.State(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return s.stateLocked(), entity.ErrSuperseded
	}
	s.history.Push(s.history.Current().Append(edit))
	s.version++

	s.log.WithField("duration", time.Since(start).String()).Info("background removed")
	return s.stateLocked(), nil
}

// Close cancels any in-flight render.
func (s *Studio) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
}

func (s *Studio) hasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil
}

// renderCurrent returns the rendered current state, reusing the preview when
// it is up to date. It does not take a render ticket, so exports are never
// superseded by previews.
func (s *Studio) renderCurrent(ctx context.Context) (*raster.Surface, entity.EditSequence, error) {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return nil, nil, entity.ErrNoImage
	}
	src, seq := s.source, s.history.Current()
	if s.preview != nil && s.previewVersion == s.version {
		out := s.preview
		s.mu.Unlock()
		return out, seq, nil
	}
	s.mu.Unlock()

	out, err := s.renderer.Render(ctx, src, seq)
	if err != nil {
		return nil, nil, err
	}
	return out, seq, nil
}

func (s *Studio) resolveFormat(explicit string, seq entity.EditSequence) (entity.Format, error) {
	if explicit != "" {
		f, err := entity.ParseFormat(explicit)
		if err != nil {
			return "", &entity.ValidationError{Kind: "export", Field: "format", Reason: err.Error()}
		}
		return f, nil
	}
	if f, ok := seq.ExportFormat(); ok {
		return f, nil
	}
	if s.opts.DefaultFormat != "" {
		return s.opts.DefaultFormat, nil
	}
	return entity.FormatPNG, nil
}

// resolveQuality picks the explicit quality or the default, then caps it
// when the sequence asks for compression.
func (s *Studio) resolveQuality(explicit *float64, seq entity.EditSequence) (float64, error) {
	q := s.opts.DefaultQuality
	if explicit != nil {
		q = *explicit
		if math.IsNaN(q) || q < 0 || q > 1 {
			return 0, &entity.ValidationError{Kind: "export", Field: "quality", Reason: "must be between 0 and 1"}
		}
	}
	if seq.Compressed() && q > s.opts.CompressQuality {
		q = s.opts.CompressQuality
	}
	return q, nil
}

func (s *Studio) publish(file entity.ExportFile, formats []entity.Format, img *raster.Surface) {
	event := entity.ExportEvent{
		SessionID: s.id,
		File:      file.Name,
		Formats:   formats,
		Bytes:     len(file.Data),
		Width:     img.Width(),
		Height:    img.Height(),
		At:        time.Now().UTC(),
	}
	s.log.WithFields(logrus.Fields{"file": file.Name, "bytes": event.Bytes}).Info("exported")

	go func() {
		if err := s.events.PublishExport(context.Background(), event); err != nil {
			s.log.WithError(err).Warn("export event not published")
		}
	}()
}

// baseName strips directories and extensions from a requested file name.
func baseName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	name = filepath.Base(filepath.Clean("/" + name))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == "/" {
		return DefaultName
	}
	return name
}
