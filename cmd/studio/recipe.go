package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/ds124wfegd/imagestudio/internal/pkg/codec"
	"github.com/ds124wfegd/imagestudio/internal/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Recipe is an ordered list of edits read from YAML:
//
//	edits:
//	  - type: resize
//	    width: 800
//	  - type: bg-image
//	    image: backdrop.jpg
//	  - type: convert
//	    format: webp
type Recipe struct {
	Edits []entity.Intent `yaml:"edits"`
}

// LoadRecipe parses the recipe at path. Image paths are resolved relative to
// the recipe file and decoded into the intents.
func LoadRecipe(store storage.FileStorage, path string) (Recipe, error) {
	f, err := store.Get(path)
	if err != nil {
		return Recipe{}, fmt.Errorf("open recipe: %w", err)
	}
	defer f.Close()

	var r Recipe
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return Recipe{}, fmt.Errorf("parse recipe %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range r.Edits {
		in := &r.Edits[i]
		if in.Image == "" {
			continue
		}
		imgPath := in.Image
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(dir, imgPath)
		}
		data, err := readAll(store, imgPath)
		if err != nil {
			return Recipe{}, fmt.Errorf("edit %d: %w", i+1, err)
		}
		in.Raster, err = codec.Decode(data)
		if err != nil {
			return Recipe{}, fmt.Errorf("edit %d: %s: %w", i+1, in.Image, err)
		}
	}
	return r, nil
}

func readAll(store storage.FileStorage, path string) ([]byte, error) {
	f, err := store.Get(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
