package convert

import (
	"image"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/dff2glb/pkg/rw"
)

// ModelType selects the static or skinned pipeline.
type ModelType int

const (
	ModelStatic ModelType = iota
	ModelSkin
)

// String returns a human-readable pipeline name.
func (t ModelType) String() string {
	if t == ModelSkin {
		return "skin"
	}
	return "static"
}

// Options configures one conversion call.
type Options struct {
	// ModelType selects the pipeline; skinned models additionally emit
	// glTF skins, joints and weights.
	ModelType ModelType

	// Logger receives per-call diagnostics (skipped chunks, missing
	// textures). Nil disables them. The converter never shares logging
	// state across calls.
	Logger *zap.Logger

	// EncodePNG converts a decoded RGBA raster into PNG bytes. Nil
	// selects the standard library encoder.
	EncodePNG func(*image.RGBA) ([]byte, error)
}

// Convert runs the full pipeline on one DFF stream with an optional TXD
// texture dictionary and returns the GLB bytes. Any stage failure aborts
// the conversion with no partial output. Converting the same input twice
// yields byte-identical results.
func Convert(dff, txd []byte, opts Options) ([]byte, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	encodePNG := opts.EncodePNG
	if encodePNG == nil {
		encodePNG = defaultEncodePNG
	}

	model, err := rw.ParseDFF(dff, log)
	if err != nil {
		return nil, errors.Wrap(err, "parsing model")
	}
	log.Debug("parsed model",
		zap.String("build", model.Build.String()),
		zap.Int("frames", len(model.Frames)),
		zap.Int("geometries", len(model.Geometries)),
		zap.Int("atomics", len(model.Atomics)))

	var dict *rw.TextureDictionary
	if len(txd) > 0 {
		if dict, err = rw.ParseTXD(txd, log); err != nil {
			return nil, errors.Wrap(err, "parsing texture dictionary")
		}
		log.Debug("parsed texture dictionary", zap.Int("textures", len(dict.Textures)))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "dff2glb"

	b := newSceneBuilder(doc, model, dict, opts.ModelType == ModelSkin, log)
	if err := b.buildNodes(); err != nil {
		return nil, errors.Wrap(err, "building nodes")
	}
	for i, a := range model.Atomics {
		if err := b.buildAtomic(a); err != nil {
			return nil, errors.Wrapf(err, "building atomic %d", i)
		}
	}
	if err := b.appendImages(encodePNG); err != nil {
		return nil, err
	}

	return encodeGLB(doc)
}
