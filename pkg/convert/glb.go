package convert

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/dff2glb/pkg/math"
)

// writeMat4Accessor appends matrices to the buffer as a MAT4 accessor.
// The modeler has no matrix writer, so the matrices go in as vec4
// columns and the accessor is retyped afterwards.
func writeMat4Accessor(doc *gltf.Document, mats []math.Mat4) uint32 {
	flat := make([][4]float32, 0, len(mats)*4)
	for _, m := range mats {
		cols := m.Cols()
		flat = append(flat, cols[0], cols[1], cols[2], cols[3])
	}
	acc := modeler.WriteTangent(doc, flat)
	doc.Accessors[acc].Type = gltf.AccessorMat4
	doc.Accessors[acc].Count /= 4
	doc.BufferViews[*doc.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

// appendImages encodes the pending textures to PNG and embeds them in
// the binary buffer. Encoding runs concurrently, one goroutine per
// image, but the bytes are inserted strictly in registration order so
// concurrency can never reorder the output.
func (b *sceneBuilder) appendImages(encodePNG func(*image.RGBA) ([]byte, error)) error {
	if len(b.pendingImages) == 0 {
		return nil
	}

	type encoded struct {
		data []byte
		err  error
	}
	results := make([]encoded, len(b.pendingImages))
	var wg sync.WaitGroup
	for i, tex := range b.pendingImages {
		i, tex := i, tex
		wg.Add(1)
		go func() {
			defer wg.Done()
			img := &image.RGBA{
				Pix:    tex.RGBA,
				Stride: tex.Width * 4,
				Rect:   image.Rect(0, 0, tex.Width, tex.Height),
			}
			results[i].data, results[i].err = encodePNG(img)
		}()
	}
	wg.Wait()

	for i, tex := range b.pendingImages {
		if results[i].err != nil {
			return errors.Wrapf(results[i].err, "encoding texture %q", tex.Name)
		}
		if _, err := modeler.WriteImage(b.doc, tex.Name, "image/png", bytes.NewReader(results[i].data)); err != nil {
			return errors.Wrapf(err, "embedding texture %q", tex.Name)
		}
	}
	b.doc.Samplers = []*gltf.Sampler{{}}
	return nil
}

// encodeGLB serializes the document as a binary glTF container.
func encodeGLB(doc *gltf.Document) ([]byte, error) {
	if len(doc.Buffers) > 0 {
		doc.Buffers[0].ByteLength = uint32(len(doc.Buffers[0].Data))
	}
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encoding glb container")
	}
	return buf.Bytes(), nil
}

// defaultEncodePNG is the stock image codec collaborator.
func defaultEncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
