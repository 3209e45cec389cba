package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ds124wfegd/imagestudio/config"
	"github.com/ds124wfegd/imagestudio/internal/appServer"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/kafka"
	"github.com/ds124wfegd/imagestudio/internal/pkg/pipeline"
	"github.com/ds124wfegd/imagestudio/internal/pkg/storage"
	"github.com/ds124wfegd/imagestudio/internal/pkg/studio"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type applyOptions struct {
	in       string
	recipe   string
	outDir   string
	name     string
	format   string
	quality  *float64
	archive  bool
	removeBg bool
	force    bool
}

func newApplyCmd(cfgPath *string) *cobra.Command {
	var opts applyOptions
	var quality float64
	cmd := &cobra.Command{
		Use:   "apply --in <image> [--recipe <recipe.yaml>]",
		Short: "Run a recipe of edits over an image and write the export",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			appServer.SetupLogging(cfg.Log)
			logrus.SetOutput(cmd.ErrOrStderr())

			if cmd.Flags().Changed("quality") {
				opts.quality = &quality
			}
			path, err := runApply(cmd.Context(), cfg, opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.in, "in", "", "source image")
	f.StringVar(&opts.recipe, "recipe", "", "YAML file with the edits to apply")
	f.StringVar(&opts.outDir, "out", ".", "output directory")
	f.StringVar(&opts.name, "name", "", "output file name without extension")
	f.StringVar(&opts.format, "format", "", "output format; with --archive a comma separated list")
	f.Float64Var(&quality, "quality", 0, "encoder quality between 0 and 1")
	f.BoolVar(&opts.archive, "archive", false, "write a zip with one file per format")
	f.BoolVar(&opts.removeBg, "remove-bg", false, "remove the background after the recipe edits")
	f.BoolVar(&opts.force, "force", false, "overwrite an existing output file")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

// runApply loads the source, replays the recipe through a session and writes
// the export. It returns the path of the written file.
func runApply(ctx context.Context, cfg *config.Config, opts applyOptions) (string, error) {
	store := storage.NewFileStorage("")
	log := logrus.NewEntry(logrus.StandardLogger())

	sessionOpts, err := appServer.StudioOptions(cfg.App)
	if err != nil {
		return "", err
	}

	var recipe Recipe
	if opts.recipe != "" {
		if recipe, err = LoadRecipe(store, opts.recipe); err != nil {
			return "", err
		}
	}

	src, err := readAll(store, opts.in)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	st := studio.New("cli", pipeline.NewEngine(log), appServer.NewGateway(cfg.Gateway), kafka.NewNoopProducer(log), sessionOpts, log)
	defer st.Close()

	if _, err := st.Upload(src); err != nil {
		return "", err
	}
	for i, in := range recipe.Edits {
		if _, err := st.Apply(in); err != nil {
			return "", fmt.Errorf("edit %d: %w", i+1, err)
		}
	}
	if opts.removeBg {
		if _, err := st.RemoveBackground(ctx); err != nil {
			return "", err
		}
	}

	name := opts.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(opts.in), filepath.Ext(opts.in)) + "-" + studio.DefaultName
	}

	var file entity.ExportFile
	if opts.archive {
		var formats []entity.Format
		if opts.format != "" {
			if formats, err = entity.ParseFormats(opts.format); err != nil {
				return "", err
			}
		}
		file, err = st.ExportArchive(ctx, formats, opts.quality, name)
	} else {
		file, err = st.Export(ctx, entity.ExportRequest{Format: opts.format, Quality: opts.quality, Name: name})
	}
	if err != nil {
		return "", err
	}

	out := filepath.Join(opts.outDir, file.Name)
	if err := store.Save(out, bytes.NewReader(file.Data), opts.force); err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{"file": out, "bytes": len(file.Data)}).Info("export written")
	return out, nil
}
