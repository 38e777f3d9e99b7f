package rw

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// TXD parse errors.
var (
	ErrNotADictionary    = errors.New("stream does not start with a texture dictionary chunk")
	ErrUnsupportedRaster = errors.New("unsupported raster format")
)

// Raster format bits.
const (
	rasterFormat1555 uint32 = 0x0100
	rasterFormat565  uint32 = 0x0200
	rasterFormat4444 uint32 = 0x0300
	rasterFormatLum8 uint32 = 0x0400
	rasterFormat8888 uint32 = 0x0500
	rasterFormat888  uint32 = 0x0600
	rasterFormatMask uint32 = 0x0F00

	rasterPal8 uint32 = 0x2000
	rasterPal4 uint32 = 0x4000
)

// Texture native platforms.
const (
	platformD3D8 uint32 = 8
	platformD3D9 uint32 = 9
)

// D3D9 FourCC codes for compressed rasters.
const (
	fourCCDXT1 uint32 = 0x31545844
	fourCCDXT3 uint32 = 0x33545844
)

// Texture is one decoded dictionary entry. RGBA is row-major
// width*height*4 bytes.
type Texture struct {
	Name     string
	MaskName string
	Width    int
	Height   int
	HasAlpha bool
	RGBA     []byte
}

// TextureDictionary is a parsed TXD.
type TextureDictionary struct {
	Version  uint32
	Build    GameBuild
	Textures []Texture
}

// Lookup finds a texture by name, case-insensitively. DFF materials and
// TXD entries frequently disagree on case.
func (d *TextureDictionary) Lookup(name string) *Texture {
	for i := range d.Textures {
		if strings.EqualFold(d.Textures[i].Name, name) {
			return &d.Textures[i]
		}
	}
	return nil
}

// ParseTXD parses a texture dictionary stream. Entries with raster
// formats the decoder does not support are skipped with a warning rather
// than failing the dictionary.
func ParseTXD(data []byte, log *zap.Logger) (*TextureDictionary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := NewReader(data)

	dict, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	if dict.Type != ChunkTextureDictionary {
		return nil, fmt.Errorf("%w: got 0x%X", ErrNotADictionary, dict.Type)
	}
	out := &TextureDictionary{
		Version: UnpackVersion(dict.Version),
		Build:   DetectBuild(dict.Version),
	}
	if out.Version < 0x31000 {
		return nil, fmt.Errorf("%w: 0x%X", ErrUnsupportedVersion, out.Version)
	}

	st, err := r.ReadChildHeader(dict.End())
	if err != nil {
		return nil, err
	}
	if st.Type != ChunkStruct {
		return nil, fmt.Errorf("%w: dictionary struct", ErrMissingData)
	}
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	r.Seek(st.End())

	for i := 0; i < int(count); i++ {
		h, err := r.ReadChildHeader(dict.End())
		if err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
		if h.Type != ChunkTextureNative {
			return nil, fmt.Errorf("%w: texture native %d", ErrMissingData, i)
		}
		tex, err := parseTextureNative(r, h)
		if err != nil {
			if errors.Is(err, ErrUnsupportedRaster) {
				log.Warn("skipping texture with unsupported raster",
					zap.Int("index", i), zap.Error(err))
				r.Seek(h.End())
				continue
			}
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
		out.Textures = append(out.Textures, *tex)
		r.Seek(h.End())
	}
	return out, nil
}

func parseTextureNative(r *Reader, native ChunkHeader) (*Texture, error) {
	st, err := r.ReadChildHeader(native.End())
	if err != nil {
		return nil, err
	}
	if st.Type != ChunkStruct {
		return nil, fmt.Errorf("%w: texture native struct", ErrMissingData)
	}

	platform, err := r.U32()
	if err != nil {
		return nil, err
	}
	if platform != platformD3D8 && platform != platformD3D9 {
		return nil, fmt.Errorf("%w: platform %d", ErrUnsupportedRaster, platform)
	}
	if _, err := r.U32(); err != nil { // filtering and addressing flags
		return nil, err
	}

	var tex Texture
	if tex.Name, err = r.String(32); err != nil {
		return nil, err
	}
	if tex.MaskName, err = r.String(32); err != nil {
		return nil, err
	}

	rasterFormat, err := r.U32()
	if err != nil {
		return nil, err
	}

	// D3D8 stores an alpha flag here, D3D9 a FourCC pixel format
	var d3dFormat uint32
	alphaOrFourCC, err := r.U32()
	if err != nil {
		return nil, err
	}
	if platform == platformD3D9 {
		d3dFormat = alphaOrFourCC
	} else {
		tex.HasAlpha = alphaOrFourCC != 0
	}

	width, err := r.U16()
	if err != nil {
		return nil, err
	}
	height, err := r.U16()
	if err != nil {
		return nil, err
	}
	tex.Width, tex.Height = int(width), int(height)
	if tex.Width == 0 || tex.Height == 0 || tex.Width > 8192 || tex.Height > 8192 {
		return nil, fmt.Errorf("%w: raster %dx%d", ErrChunkOverflow, tex.Width, tex.Height)
	}

	if _, err := r.U8(); err != nil { // depth
		return nil, err
	}
	if _, err := r.U8(); err != nil { // num levels
		return nil, err
	}
	if _, err := r.U8(); err != nil { // raster type
		return nil, err
	}
	flags, err := r.U8()
	if err != nil {
		return nil, err
	}

	compression := compressionNone
	if platform == platformD3D9 {
		tex.HasAlpha = flags&0x01 != 0
		if flags&0x08 != 0 {
			switch d3dFormat {
			case fourCCDXT1:
				compression = compressionDXT1
			case fourCCDXT3:
				compression = compressionDXT3
			default:
				return nil, fmt.Errorf("%w: fourcc 0x%X", ErrUnsupportedRaster, d3dFormat)
			}
		}
	} else {
		switch flags {
		case 0:
		case 1:
			compression = compressionDXT1
		case 3:
			compression = compressionDXT3
		default:
			return nil, fmt.Errorf("%w: dxt %d", ErrUnsupportedRaster, flags)
		}
	}

	var palette []byte
	if rasterFormat&rasterPal8 != 0 {
		if palette, err = r.Bytes(256 * 4); err != nil {
			return nil, err
		}
	} else if rasterFormat&rasterPal4 != 0 {
		if palette, err = r.Bytes(16 * 4); err != nil {
			return nil, err
		}
	}

	dataSize, err := r.U32()
	if err != nil {
		return nil, err
	}
	pixels, err := r.Bytes(int(dataSize))
	if err != nil {
		return nil, err
	}
	// remaining mip levels are not decoded

	tex.RGBA, err = decodeRaster(pixels, tex.Width, tex.Height, rasterFormat, compression, palette)
	if err != nil {
		return nil, err
	}
	return &tex, nil
}
