package rw

import (
	"bytes"
	"errors"
	"testing"
)

func fixedName(s string) []byte {
	b := make([]byte, 32)
	copy(b, s)
	return b
}

func d3d8Native(name string, rasterFormat, alpha uint32, w, h uint16, dxt uint8, palette, pixels []byte) []byte {
	var st bytes.Buffer
	st.Write(le32(platformD3D8))
	st.Write(le32(0x1106)) // filter flags
	st.Write(fixedName(name))
	st.Write(fixedName(""))
	st.Write(le32(rasterFormat))
	st.Write(le32(alpha))
	st.Write(le16(w))
	st.Write(le16(h))
	st.WriteByte(32) // depth
	st.WriteByte(1)  // mip levels
	st.WriteByte(4)  // raster type
	st.WriteByte(dxt)
	st.Write(palette)
	st.Write(le32(uint32(len(pixels))))
	st.Write(pixels)

	return chunk(ChunkTextureNative, stampSA,
		chunk(ChunkStruct, stampSA, st.Bytes()),
		chunk(ChunkExtension, stampSA),
	)
}

func d3d9Native(name string, fourCC uint32, flags uint8, w, h uint16, pixels []byte) []byte {
	var st bytes.Buffer
	st.Write(le32(platformD3D9))
	st.Write(le32(0x1106))
	st.Write(fixedName(name))
	st.Write(fixedName(""))
	st.Write(le32(rasterFormat565))
	st.Write(le32(fourCC))
	st.Write(le16(w))
	st.Write(le16(h))
	st.WriteByte(16)
	st.WriteByte(1)
	st.WriteByte(4)
	st.WriteByte(flags)
	st.Write(le32(uint32(len(pixels))))
	st.Write(pixels)

	return chunk(ChunkTextureNative, stampSA,
		chunk(ChunkStruct, stampSA, st.Bytes()),
		chunk(ChunkExtension, stampSA),
	)
}

func makeDictionary(natives ...[]byte) []byte {
	parts := [][]byte{
		chunk(ChunkStruct, stampSA, le16(uint16(len(natives))), le16(0)),
	}
	parts = append(parts, natives...)
	parts = append(parts, chunk(ChunkExtension, stampSA))
	return chunk(ChunkTextureDictionary, stampSA, parts...)
}

func TestParseTXD_Uncompressed(t *testing.T) {
	dict, err := ParseTXD(makeDictionary(
		d3d8Native("skin", rasterFormat8888, 1, 1, 1, 0, nil, []byte{1, 2, 3, 4}),
	), nil)
	if err != nil {
		t.Fatalf("ParseTXD() error: %v", err)
	}

	if dict.Build != BuildSA {
		t.Errorf("build = %v", dict.Build)
	}
	if len(dict.Textures) != 1 {
		t.Fatalf("textures = %d, want 1", len(dict.Textures))
	}
	tex := &dict.Textures[0]
	if tex.Name != "skin" || tex.Width != 1 || tex.Height != 1 || !tex.HasAlpha {
		t.Errorf("texture = %+v", tex)
	}
	// 8888 is stored BGRA
	if !bytes.Equal(tex.RGBA, []byte{3, 2, 1, 4}) {
		t.Errorf("pixels = %v", tex.RGBA)
	}
}

func TestParseTXD_Palettized(t *testing.T) {
	palette := make([]byte, 256*4)
	copy(palette[7*4:], []byte{9, 8, 7, 255})

	dict, err := ParseTXD(makeDictionary(
		d3d8Native("wall", rasterFormat8888|rasterPal8, 0, 1, 1, 0, palette, []byte{7}),
	), nil)
	if err != nil {
		t.Fatalf("ParseTXD() error: %v", err)
	}
	tex := &dict.Textures[0]
	if tex.HasAlpha {
		t.Error("alpha flag set")
	}
	if !bytes.Equal(tex.RGBA, []byte{9, 8, 7, 255}) {
		t.Errorf("pixels = %v", tex.RGBA)
	}
}

func TestParseTXD_DXT1(t *testing.T) {
	// single block, all texels on the red endpoint
	block := append(le16(0xF800), le16(0x001F)...)
	block = append(block, le32(0)...)

	dict, err := ParseTXD(makeDictionary(
		d3d9Native("road", fourCCDXT1, 0x08, 4, 4, block),
	), nil)
	if err != nil {
		t.Fatalf("ParseTXD() error: %v", err)
	}
	tex := &dict.Textures[0]
	if tex.HasAlpha {
		t.Error("alpha flag set without the flag bit")
	}
	if !bytes.Equal(tex.RGBA[:4], []byte{255, 0, 0, 255}) {
		t.Errorf("texel 0 = %v", tex.RGBA[:4])
	}
}

func TestParseTXD_SkipsUnsupported(t *testing.T) {
	ps2 := chunk(ChunkTextureNative, stampSA,
		chunk(ChunkStruct, stampSA, le32(4), le32(0)), // PS2 platform id
	)
	dict, err := ParseTXD(makeDictionary(
		ps2,
		d3d8Native("ok", rasterFormat8888, 1, 1, 1, 0, nil, []byte{0, 0, 0, 255}),
	), nil)
	if err != nil {
		t.Fatalf("ParseTXD() error: %v", err)
	}
	if len(dict.Textures) != 1 || dict.Textures[0].Name != "ok" {
		t.Errorf("textures = %+v", dict.Textures)
	}
}

func TestTextureDictionary_Lookup(t *testing.T) {
	dict := &TextureDictionary{Textures: []Texture{{Name: "CopBody"}}}
	if dict.Lookup("copbody") == nil {
		t.Error("case-insensitive lookup failed")
	}
	if dict.Lookup("missing") != nil {
		t.Error("lookup of absent name returned a texture")
	}
}

func TestParseTXD_Errors(t *testing.T) {
	if _, err := ParseTXD(chunk(ChunkClump, stampSA), nil); !errors.Is(err, ErrNotADictionary) {
		t.Errorf("err = %v, want ErrNotADictionary", err)
	}
	if _, err := ParseTXD(nil, nil); !errors.Is(err, ErrTruncatedHeader) {
		t.Errorf("err = %v, want ErrTruncatedHeader", err)
	}
	if _, err := ParseTXD(chunk(ChunkTextureDictionary, 0x0300), nil); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("err = %v, want ErrUnsupportedVersion", err)
	}
}
