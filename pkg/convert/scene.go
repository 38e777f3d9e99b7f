package convert

import (
	"fmt"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/dff2glb/pkg/math"
	"github.com/Faultbox/dff2glb/pkg/rw"
)

// sceneBuilder maps a parsed model onto a glTF document. Buffer layout
// is determined by the order accessors are written, so every write here
// happens in a fixed order: nodes, then per atomic POSITION, NORMAL,
// TEXCOORD_0..N, JOINTS_0, WEIGHTS_0, indices, inverse bind matrices,
// and finally images.
type sceneBuilder struct {
	doc     *gltf.Document
	model   *rw.Model
	dict    *rw.TextureDictionary
	skinned bool
	log     *zap.Logger

	// textures referenced by materials, in first-use order; their PNG
	// bytes are appended to the buffer after all mesh data
	pendingImages []*rw.Texture
	textureIDs    map[string]uint32
}

func newSceneBuilder(doc *gltf.Document, model *rw.Model, dict *rw.TextureDictionary, skinned bool, log *zap.Logger) *sceneBuilder {
	return &sceneBuilder{
		doc:        doc,
		model:      model,
		dict:       dict,
		skinned:    skinned,
		log:        log,
		textureIDs: make(map[string]uint32),
	}
}

// buildNodes maps the frame forest to glTF nodes 1:1 in declaration
// order. Frames with parent -1 become scene roots and receive the basis
// correction.
func (b *sceneBuilder) buildNodes() error {
	frames := b.model.Frames
	for i := range frames {
		if p := frames[i].Parent; p >= 0 && int(p) >= len(frames) {
			return fmt.Errorf("%w: frame %d parent %d of %d", ErrMissingReference, i, p, len(frames))
		}
	}
	// a parentIndex cycle would loop any traversal forever; treat a
	// revisit as a broken reference
	for i := range frames {
		visiting := make(map[int32]bool)
		for p := int32(i); p >= 0; p = frames[p].Parent {
			if visiting[p] {
				return fmt.Errorf("%w: frame parent cycle through %d", ErrMissingReference, p)
			}
			visiting[p] = true
		}
	}

	for i := range frames {
		f := &frames[i]
		b.doc.Nodes = append(b.doc.Nodes, &gltf.Node{
			Name:        f.Name,
			Translation: sanitizeVec3(f.Position).Array(),
			Rotation:    frameRotation(f.Rotation, f.Parent < 0, b.skinned).Array(),
		})
	}
	for i := range frames {
		if p := frames[i].Parent; p >= 0 {
			b.doc.Nodes[p].Children = append(b.doc.Nodes[p].Children, uint32(i))
		} else {
			b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, uint32(i))
		}
	}
	return nil
}

// buildAtomic attaches the atomic's geometry as a mesh on its frame's
// node, splitting one primitive per distinct material index.
func (b *sceneBuilder) buildAtomic(a rw.Atomic) error {
	if a.FrameIndex < 0 || int(a.FrameIndex) >= len(b.model.Frames) {
		return fmt.Errorf("%w: atomic frame %d of %d", ErrMissingReference, a.FrameIndex, len(b.model.Frames))
	}
	if a.GeometryIndex < 0 || int(a.GeometryIndex) >= len(b.model.Geometries) {
		return fmt.Errorf("%w: atomic geometry %d of %d", ErrMissingReference, a.GeometryIndex, len(b.model.Geometries))
	}
	g := &b.model.Geometries[a.GeometryIndex]

	normals := g.Normals
	if !g.HasNormals() {
		normals = SynthesizeNormals(g.Vertices, g.Triangles)
	}

	var joints [][4]uint16
	var weights [][4]float32
	useSkin := b.skinned && g.Skin != nil
	if useSkin {
		var err error
		joints, weights, err = prepareInfluences(g.Skin)
		if err != nil {
			return err
		}
	}

	// group triangles per material in first-appearance order; this
	// order fixes the primitive and buffer layout
	var matOrder []uint16
	byMaterial := make(map[uint16][]rw.Triangle)
	for _, t := range g.Triangles {
		if _, ok := byMaterial[t.MaterialID]; !ok {
			matOrder = append(matOrder, t.MaterialID)
		}
		byMaterial[t.MaterialID] = append(byMaterial[t.MaterialID], t)
	}

	var prims []*gltf.Primitive
	for _, matID := range matOrder {
		if int(matID) >= len(g.Materials) {
			return fmt.Errorf("%w: material %d of %d", ErrMissingReference, matID, len(g.Materials))
		}
		prim, err := b.buildPrimitive(g, normals, joints, weights, byMaterial[matID], matID)
		if err != nil {
			return err
		}
		prims = append(prims, prim)
	}

	node := b.doc.Nodes[a.FrameIndex]
	mesh := &gltf.Mesh{Name: node.Name, Primitives: prims}
	node.Mesh = gltf.Index(uint32(len(b.doc.Meshes)))
	b.doc.Meshes = append(b.doc.Meshes, mesh)

	if useSkin {
		skinIdx, err := b.buildSkin(g.Skin)
		if err != nil {
			return err
		}
		node.Skin = gltf.Index(skinIdx)
	}
	return nil
}

// prepareInfluences sanitizes and renormalizes the skin's influence data
// without mutating the parsed model.
func prepareInfluences(skin *rw.Skin) ([][4]uint16, [][4]float32, error) {
	flatIdx := make([]uint8, 0, len(skin.BoneIndices)*4)
	flatW := make([]float32, 0, len(skin.VertexWeights)*4)
	for i := range skin.BoneIndices {
		flatIdx = append(flatIdx, skin.BoneIndices[i][:]...)
	}
	for i := range skin.VertexWeights {
		flatW = append(flatW, skin.VertexWeights[i][:]...)
	}
	if err := SanitizeJoints(flatIdx, flatW); err != nil {
		return nil, nil, err
	}

	joints := make([][4]uint16, len(skin.BoneIndices))
	weights := make([][4]float32, len(skin.VertexWeights))
	for i := range joints {
		for j := 0; j < 4; j++ {
			joints[i][j] = uint16(flatIdx[i*4+j])
			weights[i][j] = flatW[i*4+j]
		}
	}
	NormalizeWeights(weights)
	return joints, weights, nil
}

// buildPrimitive re-indexes the triangle subset into its own compact
// vertex range and writes its accessors in the fixed attribute order.
func (b *sceneBuilder) buildPrimitive(g *rw.Geometry, normals []math.Vec3, joints [][4]uint16, weights [][4]float32, tris []rw.Triangle, matID uint16) (*gltf.Primitive, error) {
	remap := make(map[uint16]uint32)
	var subset []uint16
	indices := make([]uint32, 0, len(tris)*3)
	for _, t := range tris {
		for _, v := range [3]uint16{t.A, t.B, t.C} {
			ni, ok := remap[v]
			if !ok {
				if int(v) >= len(g.Vertices) {
					return nil, fmt.Errorf("%w: vertex %d of %d", ErrMissingReference, v, len(g.Vertices))
				}
				ni = uint32(len(subset))
				remap[v] = ni
				subset = append(subset, v)
			}
			indices = append(indices, ni)
		}
	}

	positions := make([][3]float32, len(subset))
	norms := make([][3]float32, len(subset))
	for i, old := range subset {
		positions[i] = g.Vertices[old].Array()
		norms[i] = normals[old].Array()
	}

	attrs := map[string]uint32{
		gltf.POSITION: modeler.WritePosition(b.doc, positions),
		gltf.NORMAL:   modeler.WriteNormal(b.doc, norms),
	}
	for layer, uvs := range g.UVLayers {
		sub := make([][2]float32, len(subset))
		for i, old := range subset {
			sub[i] = [2]float32{uvs[old].U, uvs[old].V}
		}
		attrs[fmt.Sprintf("TEXCOORD_%d", layer)] = modeler.WriteTextureCoord(b.doc, sub)
	}
	if joints != nil {
		j := make([][4]uint16, len(subset))
		w := make([][4]float32, len(subset))
		for i, old := range subset {
			j[i] = joints[old]
			w[i] = weights[old]
		}
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(b.doc, j)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(b.doc, w)
	}

	return &gltf.Primitive{
		Attributes: attrs,
		Indices:    gltf.Index(modeler.WriteIndices(b.doc, indices)),
		Material:   gltf.Index(b.buildMaterial(g.Materials[matID])),
	}, nil
}

func (b *sceneBuilder) buildMaterial(mat rw.Material) uint32 {
	baseColor := [4]float32{
		float32(mat.Color.R) / 255,
		float32(mat.Color.G) / 255,
		float32(mat.Color.B) / 255,
		float32(mat.Color.A) / 255,
	}
	metallic := float32(0)
	roughness := float32(1)
	mm := &gltf.Material{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &baseColor,
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
	}
	if mat.Color.A < 255 {
		mm.AlphaMode = gltf.AlphaBlend
	}
	if mat.Texture != nil {
		mm.Name = mat.Texture.Name
		if tex := b.lookupTexture(mat.Texture.Name); tex != nil {
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{
				Index: b.textureID(tex),
			}
			if tex.HasAlpha {
				mm.AlphaMode = gltf.AlphaBlend
			}
		}
	}
	idx := uint32(len(b.doc.Materials))
	b.doc.Materials = append(b.doc.Materials, mm)
	return idx
}

func (b *sceneBuilder) lookupTexture(name string) *rw.Texture {
	if b.dict == nil {
		return nil
	}
	tex := b.dict.Lookup(name)
	if tex == nil {
		b.log.Warn("texture not found in dictionary", zap.String("name", name))
	}
	return tex
}

// textureID returns the glTF texture index for a dictionary entry,
// registering its image for the deferred append pass on first use.
func (b *sceneBuilder) textureID(tex *rw.Texture) uint32 {
	key := strings.ToLower(tex.Name)
	if id, ok := b.textureIDs[key]; ok {
		return id
	}
	imageIdx := uint32(len(b.pendingImages))
	b.pendingImages = append(b.pendingImages, tex)
	id := uint32(len(b.doc.Textures))
	b.doc.Textures = append(b.doc.Textures, &gltf.Texture{
		Sampler: gltf.Index(0),
		Source:  gltf.Index(imageIdx),
	})
	b.textureIDs[key] = id
	return id
}

// buildSkin emits a glTF skin whose joints are the bone frames ordered
// by bone index, with rigid-normalized inverse bind matrices.
func (b *sceneBuilder) buildSkin(skin *rw.Skin) (uint32, error) {
	jointNodes := make([]uint32, skin.BoneCount)
	found := make([]bool, skin.BoneCount)
	for i := range b.model.Frames {
		bone := b.model.Frames[i].Bone
		if bone == nil || bone.Index < 0 || int(bone.Index) >= skin.BoneCount {
			continue
		}
		jointNodes[bone.Index] = uint32(i)
		found[bone.Index] = true
	}
	for i, ok := range found {
		if !ok {
			return 0, fmt.Errorf("%w: no frame for bone %d", ErrMissingReference, i)
		}
	}
	if len(skin.InverseBoneMatrices) < skin.BoneCount {
		return 0, fmt.Errorf("%w: %d inverse matrices for %d bones", ErrMissingReference, len(skin.InverseBoneMatrices), skin.BoneCount)
	}

	ibms := make([]math.Mat4, skin.BoneCount)
	for i := range ibms {
		ibms[i] = NormalizeRigid(skin.InverseBoneMatrices[i])
	}

	idx := uint32(len(b.doc.Skins))
	b.doc.Skins = append(b.doc.Skins, &gltf.Skin{
		Joints:              jointNodes,
		InverseBindMatrices: gltf.Index(writeMat4Accessor(b.doc, ibms)),
	})
	return idx, nil
}
