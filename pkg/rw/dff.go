package rw

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/dff2glb/pkg/math"
)

// DFF parse errors.
var (
	ErrNotAClump   = errors.New("stream does not start with a clump chunk")
	ErrMissingData = errors.New("required sub-chunk missing")
)

// Geometry format flags.
const (
	GeomTriStrip  uint32 = 0x01
	GeomPositions uint32 = 0x02
	GeomTextured  uint32 = 0x04
	GeomPrelit    uint32 = 0x08
	GeomNormals   uint32 = 0x10
	GeomLight     uint32 = 0x20
	GeomModulate  uint32 = 0x40
	GeomTextured2 uint32 = 0x80
)

// RGBA is an 8-bit color.
type RGBA struct {
	R, G, B, A uint8
}

// UV is a texture coordinate.
type UV struct {
	U, V float32
}

// BoneData is the skeletal identity of a frame.
type BoneData struct {
	ID    int32 // bone id from the frame's anim chunk
	Index int32 // index into the skin's bone table
	Type  int32 // hierarchy flags (push/pop markers)
}

// Frame is a transform node in the model's rigid hierarchy.
// Parent is an index into Model.Frames; -1 marks a root.
type Frame struct {
	Name     string
	Parent   int32
	Position math.Vec3
	Rotation math.Mat3
	Bone     *BoneData
}

// Triangle is one face with its material binding.
type Triangle struct {
	A, B, C    uint16
	MaterialID uint16
}

// SurfaceProps are the classic lighting coefficients.
type SurfaceProps struct {
	Ambient, Specular, Diffuse float32
}

// TextureRef names a texture and its alpha mask inside a dictionary.
type TextureRef struct {
	Name     string
	MaskName string
}

// Material describes one surface.
type Material struct {
	Color   RGBA
	Texture *TextureRef
	Surface SurfaceProps
}

// Skin carries per-vertex bone influences and rest-pose matrices.
// VertexWeights and BoneIndices always have exactly one 4-slot group per
// vertex, zero-padded.
type Skin struct {
	BoneCount           int
	UsedBoneCount       int
	MaxWeightsPerVertex int
	BoneIndices         [][4]uint8
	VertexWeights       [][4]float32
	InverseBoneMatrices []math.Mat4
}

// Geometry is one mesh with its materials and optional skin.
type Geometry struct {
	Flags        uint32
	Vertices     []math.Vec3
	Normals      []math.Vec3
	PrelitColors []RGBA
	UVLayers     [][]UV
	Triangles    []Triangle
	Materials    []Material
	Skin         *Skin
}

// HasNormals reports whether the source carried explicit normals.
func (g *Geometry) HasNormals() bool {
	return len(g.Normals) > 0
}

// Atomic binds a geometry to a frame (a drawable instance).
type Atomic struct {
	FrameIndex    int32
	GeometryIndex int32
	Flags         uint32
}

// Model is a fully parsed DFF clump. It is immutable once parsing
// completes.
type Model struct {
	Version    uint32
	Build      GameBuild
	Frames     []Frame
	Geometries []Geometry
	Atomics    []Atomic
}

// RootFrameIndices returns the indices of all frames with no parent, in
// declaration order.
func (m *Model) RootFrameIndices() []int {
	var roots []int
	for i := range m.Frames {
		if m.Frames[i].Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// TotalTriangleCount returns the triangle count across all geometries.
func (m *Model) TotalTriangleCount() int {
	total := 0
	for i := range m.Geometries {
		total += len(m.Geometries[i].Triangles)
	}
	return total
}

// HasSkin reports whether any geometry carries skinning data.
func (m *Model) HasSkin() bool {
	for i := range m.Geometries {
		if m.Geometries[i].Skin != nil {
			return true
		}
	}
	return false
}

type dffParser struct {
	r     *Reader
	log   *zap.Logger
	build GameBuild
	model *Model

	// root bone table, matched back to frames by bone id after the
	// frame list is complete
	boneTable []BoneData
}

// ParseDFF parses a DFF clump stream. The logger receives warnings for
// skipped unknown chunks; nil disables diagnostics.
func ParseDFF(data []byte, log *zap.Logger) (*Model, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &dffParser{r: NewReader(data), log: log, model: &Model{}}

	clump, err := p.r.ReadHeader()
	if err != nil {
		return nil, err
	}
	if clump.Type != ChunkClump {
		return nil, fmt.Errorf("%w: got 0x%X", ErrNotAClump, clump.Type)
	}
	p.model.Version = UnpackVersion(clump.Version)
	if p.model.Version < 0x31000 {
		return nil, fmt.Errorf("%w: 0x%X", ErrUnsupportedVersion, p.model.Version)
	}
	p.model.Build = DetectBuild(clump.Version)
	p.build = p.model.Build

	if err := p.parseClump(clump); err != nil {
		return nil, err
	}
	return p.model, nil
}

// forEachChild walks the direct children of parent, dispatching each to
// fn. It enforces the nesting depth guard and leaves the cursor at the
// parent's end.
func (p *dffParser) forEachChild(parent ChunkHeader, depth int, fn func(ChunkHeader, int) error) error {
	if depth > maxChunkDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrChunkOverflow, maxChunkDepth)
	}
	for p.r.Pos()+headerSize <= parent.End() {
		child, err := p.r.ReadChildHeader(parent.End())
		if err != nil {
			return err
		}
		if err := fn(child, depth+1); err != nil {
			return err
		}
		p.r.Seek(child.End())
	}
	p.r.Seek(parent.End())
	return nil
}

func (p *dffParser) skip(h ChunkHeader) {
	p.log.Warn("skipping unknown chunk",
		zap.Uint32("type", h.Type),
		zap.Uint32("size", h.Size),
		zap.Int("offset", h.Offset))
}

func (p *dffParser) parseClump(clump ChunkHeader) error {
	return p.forEachChild(clump, 0, func(h ChunkHeader, depth int) error {
		switch h.Type {
		case ChunkStruct:
			// atomic count plus light/camera counts on newer streams;
			// all three are recomputed from the chunks that follow
			return nil
		case ChunkFrameList:
			return p.parseFrameList(h, depth)
		case ChunkGeometryList:
			return p.parseGeometryList(h, depth)
		case ChunkAtomic:
			return p.parseAtomic(h, depth)
		case ChunkExtension:
			return nil
		default:
			p.skip(h)
			return nil
		}
	})
}

func (p *dffParser) parseFrameList(list ChunkHeader, depth int) error {
	st, err := p.r.ReadChildHeader(list.End())
	if err != nil {
		return err
	}
	if st.Type != ChunkStruct {
		return fmt.Errorf("%w: frame list struct", ErrMissingData)
	}

	count, err := p.r.I32()
	if err != nil {
		return err
	}
	if count < 0 || count > 10000 {
		return fmt.Errorf("%w: frame count %d", ErrChunkOverflow, count)
	}

	frames := make([]Frame, count)
	for i := range frames {
		f := &frames[i]
		if f.Rotation, err = p.r.Mat3(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if f.Position, err = p.r.Vec3(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if f.Parent, err = p.r.I32(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if _, err = p.r.U32(); err != nil { // matrix flags, unused
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	p.r.Seek(st.End())

	// one extension chunk per frame, in frame order; names and bone ids
	// are matched to frames by this traversal order
	for i := range frames {
		ext, err := p.r.ReadChildHeader(list.End())
		if err != nil {
			return fmt.Errorf("frame %d extension: %w", i, err)
		}
		if ext.Type != ChunkExtension {
			return fmt.Errorf("%w: frame %d extension", ErrMissingData, i)
		}
		if err := p.parseFrameExtension(ext, depth, &frames[i]); err != nil {
			return err
		}
		p.r.Seek(ext.End())
	}

	// resolve bone index/type from the root node table
	for i := range frames {
		b := frames[i].Bone
		if b == nil {
			continue
		}
		for _, entry := range p.boneTable {
			if entry.ID == b.ID {
				b.Index = entry.Index
				b.Type = entry.Type
				break
			}
		}
	}

	p.model.Frames = frames
	p.r.Seek(list.End())
	return nil
}

func (p *dffParser) parseFrameExtension(ext ChunkHeader, depth int, f *Frame) error {
	return p.forEachChild(ext, depth, func(h ChunkHeader, _ int) error {
		switch h.Type {
		case ChunkNodeName:
			name, err := p.r.Bytes(int(h.Size))
			if err != nil {
				return err
			}
			f.Name = strings.TrimRight(string(name), "\x00")
			return nil
		case ChunkHAnim:
			return p.parseHAnim(f)
		default:
			p.skip(h)
			return nil
		}
	})
}

func (p *dffParser) parseHAnim(f *Frame) error {
	if _, err := p.r.U32(); err != nil { // anim version
		return err
	}
	nodeID, err := p.r.I32()
	if err != nil {
		return err
	}
	numNodes, err := p.r.U32()
	if err != nil {
		return err
	}
	f.Bone = &BoneData{ID: nodeID}

	if numNodes == 0 {
		return nil
	}
	if numNodes > 10000 {
		return fmt.Errorf("%w: bone count %d", ErrChunkOverflow, numNodes)
	}
	if err := p.r.Skip(8); err != nil { // hierarchy flags, keyframe size
		return err
	}
	p.boneTable = make([]BoneData, numNodes)
	for i := range p.boneTable {
		b := &p.boneTable[i]
		if b.ID, err = p.r.I32(); err != nil {
			return err
		}
		if b.Index, err = p.r.I32(); err != nil {
			return err
		}
		if b.Type, err = p.r.I32(); err != nil {
			return err
		}
	}
	return nil
}

func (p *dffParser) parseGeometryList(list ChunkHeader, depth int) error {
	st, err := p.r.ReadChildHeader(list.End())
	if err != nil {
		return err
	}
	if st.Type != ChunkStruct {
		return fmt.Errorf("%w: geometry list struct", ErrMissingData)
	}
	count, err := p.r.I32()
	if err != nil {
		return err
	}
	if count < 0 || count > 10000 {
		return fmt.Errorf("%w: geometry count %d", ErrChunkOverflow, count)
	}
	p.r.Seek(st.End())

	p.model.Geometries = make([]Geometry, 0, count)
	for i := int32(0); i < count; i++ {
		h, err := p.r.ReadChildHeader(list.End())
		if err != nil {
			return fmt.Errorf("geometry %d: %w", i, err)
		}
		if h.Type != ChunkGeometry {
			return fmt.Errorf("%w: geometry %d", ErrMissingData, i)
		}
		if err := p.parseGeometry(h, depth); err != nil {
			return fmt.Errorf("geometry %d: %w", i, err)
		}
		p.r.Seek(h.End())
	}
	p.r.Seek(list.End())
	return nil
}

func (p *dffParser) parseGeometry(geo ChunkHeader, depth int) error {
	st, err := p.r.ReadChildHeader(geo.End())
	if err != nil {
		return err
	}
	if st.Type != ChunkStruct {
		return fmt.Errorf("%w: geometry struct", ErrMissingData)
	}

	var g Geometry
	format, err := p.r.U32()
	if err != nil {
		return err
	}
	g.Flags = format & 0xFF
	numTriangles, err := p.r.U32()
	if err != nil {
		return err
	}
	numVertices, err := p.r.U32()
	if err != nil {
		return err
	}
	numMorphs, err := p.r.U32()
	if err != nil {
		return err
	}
	if numVertices > 1000000 || numTriangles > 1000000 {
		return fmt.Errorf("%w: %d vertices, %d triangles", ErrChunkOverflow, numVertices, numTriangles)
	}

	// pre-3.4 streams embed the surface lighting block in the geometry
	if UnpackVersion(geo.Version) < 0x34000 {
		if err := p.r.Skip(12); err != nil {
			return err
		}
	}

	if g.Flags&GeomPrelit != 0 {
		g.PrelitColors = make([]RGBA, numVertices)
		for i := range g.PrelitColors {
			b, err := p.r.Bytes(4)
			if err != nil {
				return err
			}
			g.PrelitColors[i] = RGBA{b[0], b[1], b[2], b[3]}
		}
	}

	numUVs := int((format >> 16) & 0xFF)
	if numUVs == 0 {
		if g.Flags&GeomTextured != 0 {
			numUVs = 1
		} else if g.Flags&GeomTextured2 != 0 {
			numUVs = 2
		}
	}
	g.UVLayers = make([][]UV, numUVs)
	for layer := range g.UVLayers {
		uvs := make([]UV, numVertices)
		for i := range uvs {
			if uvs[i].U, err = p.r.F32(); err != nil {
				return err
			}
			if uvs[i].V, err = p.r.F32(); err != nil {
				return err
			}
		}
		g.UVLayers[layer] = uvs
	}

	// wire order per face is vertex2, vertex1, material, vertex3
	g.Triangles = make([]Triangle, numTriangles)
	for i := range g.Triangles {
		t := &g.Triangles[i]
		if t.B, err = p.r.U16(); err != nil {
			return err
		}
		if t.A, err = p.r.U16(); err != nil {
			return err
		}
		if t.MaterialID, err = p.r.U16(); err != nil {
			return err
		}
		if t.C, err = p.r.U16(); err != nil {
			return err
		}
	}

	for morph := uint32(0); morph < numMorphs; morph++ {
		if err := p.r.Skip(16); err != nil { // bounding sphere
			return err
		}
		hasVertices, err := p.r.U32()
		if err != nil {
			return err
		}
		hasNormals, err := p.r.U32()
		if err != nil {
			return err
		}
		if morph > 0 {
			// only the base morph target feeds the converter
			skip := 0
			if hasVertices != 0 {
				skip += int(numVertices) * 12
			}
			if hasNormals != 0 {
				skip += int(numVertices) * 12
			}
			if err := p.r.Skip(skip); err != nil {
				return err
			}
			continue
		}
		if hasVertices != 0 {
			g.Vertices = make([]math.Vec3, numVertices)
			for i := range g.Vertices {
				if g.Vertices[i], err = p.r.Vec3(); err != nil {
					return err
				}
			}
		}
		if hasNormals != 0 {
			g.Normals = make([]math.Vec3, numVertices)
			for i := range g.Normals {
				if g.Normals[i], err = p.r.Vec3(); err != nil {
					return err
				}
			}
		}
	}
	p.r.Seek(st.End())

	err = p.forEachChild(geo, depth, func(h ChunkHeader, d int) error {
		switch h.Type {
		case ChunkStruct:
			return nil
		case ChunkMaterialList:
			return p.parseMaterialList(h, d, &g)
		case ChunkExtension:
			return p.parseGeometryExtension(h, d, &g)
		default:
			p.skip(h)
			return nil
		}
	})
	if err != nil {
		return err
	}

	p.model.Geometries = append(p.model.Geometries, g)
	return nil
}

func (p *dffParser) parseMaterialList(list ChunkHeader, depth int, g *Geometry) error {
	st, err := p.r.ReadChildHeader(list.End())
	if err != nil {
		return err
	}
	if st.Type != ChunkStruct {
		return fmt.Errorf("%w: material list struct", ErrMissingData)
	}
	count, err := p.r.I32()
	if err != nil {
		return err
	}
	if count < 0 || count > 1000 {
		return fmt.Errorf("%w: material count %d", ErrChunkOverflow, count)
	}
	refs := make([]int32, count)
	for i := range refs {
		if refs[i], err = p.r.I32(); err != nil {
			return err
		}
	}
	p.r.Seek(st.End())

	g.Materials = make([]Material, 0, count)
	for i, ref := range refs {
		if ref >= 0 {
			// shared material, reuse an earlier slot
			if int(ref) >= len(g.Materials) {
				return fmt.Errorf("%w: material ref %d of %d", ErrMissingData, ref, len(g.Materials))
			}
			g.Materials = append(g.Materials, g.Materials[ref])
			continue
		}
		h, err := p.r.ReadChildHeader(list.End())
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		if h.Type != ChunkMaterial {
			return fmt.Errorf("%w: material %d", ErrMissingData, i)
		}
		mat, err := p.parseMaterial(h, depth)
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		g.Materials = append(g.Materials, mat)
		p.r.Seek(h.End())
	}
	p.r.Seek(list.End())
	return nil
}

func (p *dffParser) parseMaterial(matChunk ChunkHeader, depth int) (Material, error) {
	var mat Material
	st, err := p.r.ReadChildHeader(matChunk.End())
	if err != nil {
		return mat, err
	}
	if st.Type != ChunkStruct {
		return mat, fmt.Errorf("%w: material struct", ErrMissingData)
	}
	if _, err = p.r.U32(); err != nil { // flags, unused
		return mat, err
	}
	b, err := p.r.Bytes(4)
	if err != nil {
		return mat, err
	}
	mat.Color = RGBA{b[0], b[1], b[2], b[3]}
	if _, err = p.r.U32(); err != nil { // unused
		return mat, err
	}
	textured, err := p.r.I32()
	if err != nil {
		return mat, err
	}
	if UnpackVersion(matChunk.Version) > 0x30400 {
		if mat.Surface.Ambient, err = p.r.F32(); err != nil {
			return mat, err
		}
		if mat.Surface.Specular, err = p.r.F32(); err != nil {
			return mat, err
		}
		if mat.Surface.Diffuse, err = p.r.F32(); err != nil {
			return mat, err
		}
	}
	p.r.Seek(st.End())

	if textured != 0 {
		tex, err := p.r.ReadChildHeader(matChunk.End())
		if err != nil {
			return mat, err
		}
		if tex.Type != ChunkTexture {
			return mat, fmt.Errorf("%w: texture chunk", ErrMissingData)
		}
		ref, err := p.parseTextureRef(tex)
		if err != nil {
			return mat, err
		}
		mat.Texture = ref
		p.r.Seek(tex.End())
	}
	return mat, nil
}

func (p *dffParser) parseTextureRef(tex ChunkHeader) (*TextureRef, error) {
	st, err := p.r.ReadChildHeader(tex.End())
	if err != nil {
		return nil, err
	}
	if st.Type != ChunkStruct {
		return nil, fmt.Errorf("%w: texture struct", ErrMissingData)
	}
	p.r.Seek(st.End()) // filtering flags, unused by the converter

	var ref TextureRef
	for i := 0; i < 2; i++ {
		s, err := p.r.ReadChildHeader(tex.End())
		if err != nil {
			return nil, err
		}
		if s.Type != ChunkString {
			return nil, fmt.Errorf("%w: texture name string", ErrMissingData)
		}
		name, err := p.r.String(int(s.Size))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			ref.Name = name
		} else {
			ref.MaskName = name
		}
		p.r.Seek(s.End())
	}
	return &ref, nil
}

func (p *dffParser) parseGeometryExtension(ext ChunkHeader, depth int, g *Geometry) error {
	return p.forEachChild(ext, depth, func(h ChunkHeader, _ int) error {
		switch h.Type {
		case ChunkSkin:
			return p.parseSkin(h, g)
		default:
			p.skip(h)
			return nil
		}
	})
}

// parseSkin reads the skinning plugin. SA streams pack bone count, used
// bone count and max weights into a byte header followed by a used-bone
// table; III/VC streams carry a plain uint32 bone count and prefix every
// inverse matrix with a 4-byte marker.
func (p *dffParser) parseSkin(h ChunkHeader, g *Geometry) error {
	header, err := p.r.U32()
	if err != nil {
		return err
	}

	skin := &Skin{MaxWeightsPerVertex: 4}
	newFormat := p.build == BuildSA
	if newFormat {
		skin.BoneCount = int(header & 0xFF)
		skin.UsedBoneCount = int((header >> 8) & 0xFF)
		skin.MaxWeightsPerVertex = int((header >> 16) & 0xFF)
		if err := p.r.Skip(skin.UsedBoneCount); err != nil {
			return err
		}
	} else {
		skin.BoneCount = int(header)
		skin.UsedBoneCount = skin.BoneCount
	}
	if skin.BoneCount <= 0 || skin.BoneCount > 256 {
		return fmt.Errorf("%w: skin bone count %d", ErrChunkOverflow, skin.BoneCount)
	}

	numVertices := len(g.Vertices)
	skin.BoneIndices = make([][4]uint8, numVertices)
	for i := range skin.BoneIndices {
		b, err := p.r.Bytes(4)
		if err != nil {
			return err
		}
		copy(skin.BoneIndices[i][:], b)
	}
	skin.VertexWeights = make([][4]float32, numVertices)
	for i := range skin.VertexWeights {
		for j := 0; j < 4; j++ {
			if skin.VertexWeights[i][j], err = p.r.F32(); err != nil {
				return err
			}
		}
	}

	skin.InverseBoneMatrices = make([]math.Mat4, skin.BoneCount)
	for i := range skin.InverseBoneMatrices {
		if !newFormat {
			if err := p.r.Skip(4); err != nil {
				return err
			}
		}
		if skin.InverseBoneMatrices[i], err = p.r.Mat4(); err != nil {
			return err
		}
	}
	// SA streams append bone-limit split data here; the converter has no
	// use for it

	g.Skin = skin
	return nil
}

func (p *dffParser) parseAtomic(atomic ChunkHeader, depth int) error {
	st, err := p.r.ReadChildHeader(atomic.End())
	if err != nil {
		return err
	}
	if st.Type != ChunkStruct {
		return fmt.Errorf("%w: atomic struct", ErrMissingData)
	}
	var a Atomic
	if a.FrameIndex, err = p.r.I32(); err != nil {
		return err
	}
	if a.GeometryIndex, err = p.r.I32(); err != nil {
		return err
	}
	if a.Flags, err = p.r.U32(); err != nil {
		return err
	}
	p.model.Atomics = append(p.model.Atomics, a)
	p.r.Seek(atomic.End())
	return nil
}
