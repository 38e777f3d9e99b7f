package rw

import "fmt"

// containerChunks are the types whose payload begins with child chunks.
var containerChunks = map[uint32]bool{
	ChunkClump:             true,
	ChunkFrameList:         true,
	ChunkGeometryList:      true,
	ChunkGeometry:          false, // leading struct, children after it
	ChunkMaterialList:      true,
	ChunkMaterial:          true,
	ChunkTexture:           true,
	ChunkAtomic:            true,
	ChunkExtension:         true,
	ChunkTextureDictionary: true,
	ChunkTextureNative:     true,
}

// ChunkTypeName returns a readable name for a chunk type.
func ChunkTypeName(t uint32) string {
	switch t {
	case ChunkStruct:
		return "Struct"
	case ChunkString:
		return "String"
	case ChunkExtension:
		return "Extension"
	case ChunkTexture:
		return "Texture"
	case ChunkMaterial:
		return "Material"
	case ChunkMaterialList:
		return "MaterialList"
	case ChunkFrameList:
		return "FrameList"
	case ChunkGeometry:
		return "Geometry"
	case ChunkClump:
		return "Clump"
	case ChunkAtomic:
		return "Atomic"
	case ChunkTextureNative:
		return "TextureNative"
	case ChunkTextureDictionary:
		return "TextureDictionary"
	case ChunkGeometryList:
		return "GeometryList"
	case ChunkSkin:
		return "SkinPLG"
	case ChunkHAnim:
		return "HAnimPLG"
	case ChunkNodeName:
		return "NodeName"
	default:
		return fmt.Sprintf("Unknown(0x%X)", t)
	}
}

// Walk traverses the chunk tree, calling fn for every chunk with its
// nesting depth. Only known container types are descended into; the
// depth guard applies as in parsing.
func Walk(data []byte, fn func(ChunkHeader, int) error) error {
	r := NewReader(data)
	return walkSpan(r, len(data), 0, fn)
}

func walkSpan(r *Reader, end, depth int, fn func(ChunkHeader, int) error) error {
	if depth > maxChunkDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrChunkOverflow, maxChunkDepth)
	}
	for r.Pos()+headerSize <= end {
		h, err := r.ReadChildHeader(end)
		if err != nil {
			return err
		}
		if err := fn(h, depth); err != nil {
			return err
		}
		if containerChunks[h.Type] {
			if err := walkSpan(r, h.End(), depth+1, fn); err != nil {
				return err
			}
		}
		r.Seek(h.End())
	}
	return nil
}
