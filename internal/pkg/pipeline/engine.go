// Package pipeline folds an edit sequence over a source raster.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/raster"
	"github.com/sirupsen/logrus"
)

type Renderer interface {
	Render(ctx context.Context, src *raster.Surface, seq entity.EditSequence) (*raster.Surface, error)
}

// Engine has no state between calls. Render never mutates src or the
// rasters attached to edits, so it can be called from any goroutine.
type Engine struct {
	log *logrus.Entry
}

func NewEngine(log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{log: log.WithField("component", "pipeline")}
}

// Render copies src and applies each edit in order. The context is checked
// before every step; on cancellation the partial result is dropped.
func (e *Engine) Render(ctx context.Context, src *raster.Surface, seq entity.EditSequence) (*raster.Surface, error) {
	if src == nil {
		return nil, entity.ErrNoImage
	}

	start := time.Now()
	cur := src.Clone()

	for i, edit := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step, ok := steps[edit.Kind]
		if !ok {
			return nil, fmt.Errorf("edit %d: no step for %q", i, edit.Kind)
		}

		next, err := step(cur, edit)
		if err != nil {
			return nil, fmt.Errorf("edit %d (%s): %w", i, edit.Kind, err)
		}
		cur = next
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"edits":    len(seq),
		"width":    cur.Width(),
		"height":   cur.Height(),
		"duration": time.Since(start).String(),
	}).Debug("render finished")

	return cur, nil
}

// RenderInto renders and copies the result into target, which takes the
// size of the result. target is left alone when rendering fails.
func (e *Engine) RenderInto(ctx context.Context, src *raster.Surface, seq entity.EditSequence, target *raster.Surface) error {
	out, err := e.Render(ctx, src, seq)
	if err != nil {
		return err
	}
	target.CopyFrom(out)
	return nil
}
