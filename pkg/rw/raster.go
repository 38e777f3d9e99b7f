package rw

import (
	"encoding/binary"
	"fmt"
)

type compressionKind int

const (
	compressionNone compressionKind = iota
	compressionDXT1
	compressionDXT3
)

// decodeRaster converts raw raster bytes into row-major RGBA.
func decodeRaster(data []byte, width, height int, format uint32, compression compressionKind, palette []byte) ([]byte, error) {
	switch compression {
	case compressionDXT1:
		return decodeDXT(data, width, height, false)
	case compressionDXT3:
		return decodeDXT(data, width, height, true)
	}

	if palette != nil {
		if format&rasterPal4 != 0 && format&rasterPal8 == 0 {
			return decodePal4(data, width, height, palette)
		}
		return decodePal8(data, width, height, palette)
	}

	switch format & rasterFormatMask {
	case rasterFormat8888:
		return decode32(data, width, height, true)
	case rasterFormat888:
		return decode32(data, width, height, false)
	case rasterFormat565:
		return decode16(data, width, height, decode565)
	case rasterFormat1555:
		return decode16(data, width, height, decode1555)
	case rasterFormat4444:
		return decode16(data, width, height, decode4444)
	case rasterFormatLum8:
		return decodeLum8(data, width, height)
	default:
		return nil, fmt.Errorf("%w: format 0x%X", ErrUnsupportedRaster, format)
	}
}

func rasterLen(data []byte, need int) error {
	if len(data) < need {
		return fmt.Errorf("%w: raster data %d bytes, need %d", ErrTruncatedHeader, len(data), need)
	}
	return nil
}

// decode32 handles 8888 (BGRA byte order) and 888 (BGRX).
func decode32(data []byte, width, height int, hasAlpha bool) ([]byte, error) {
	if err := rasterLen(data, width*height*4); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4+0] = data[i*4+2]
		out[i*4+1] = data[i*4+1]
		out[i*4+2] = data[i*4+0]
		if hasAlpha {
			out[i*4+3] = data[i*4+3]
		} else {
			out[i*4+3] = 0xFF
		}
	}
	return out, nil
}

func decode16(data []byte, width, height int, pixel func(uint16) [4]byte) ([]byte, error) {
	if err := rasterLen(data, width*height*2); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		p := pixel(binary.LittleEndian.Uint16(data[i*2:]))
		copy(out[i*4:], p[:])
	}
	return out, nil
}

func decode565(v uint16) [4]byte {
	return [4]byte{
		expand5(uint8(v >> 11 & 0x1F)),
		expand6(uint8(v >> 5 & 0x3F)),
		expand5(uint8(v & 0x1F)),
		0xFF,
	}
}

func decode1555(v uint16) [4]byte {
	a := byte(0)
	if v&0x8000 != 0 {
		a = 0xFF
	}
	return [4]byte{
		expand5(uint8(v >> 10 & 0x1F)),
		expand5(uint8(v >> 5 & 0x1F)),
		expand5(uint8(v & 0x1F)),
		a,
	}
}

func decode4444(v uint16) [4]byte {
	return [4]byte{
		uint8(v>>8&0xF) * 17,
		uint8(v>>4&0xF) * 17,
		uint8(v&0xF) * 17,
		uint8(v>>12&0xF) * 17,
	}
}

func decodeLum8(data []byte, width, height int) ([]byte, error) {
	if err := rasterLen(data, width*height); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		out[i*4+0] = data[i]
		out[i*4+1] = data[i]
		out[i*4+2] = data[i]
		out[i*4+3] = 0xFF
	}
	return out, nil
}

// Palettes are stored as RGBA entries.
func decodePal8(data []byte, width, height int, palette []byte) ([]byte, error) {
	if err := rasterLen(data, width*height); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		copy(out[i*4:], palette[int(data[i])*4:int(data[i])*4+4])
	}
	return out, nil
}

func decodePal4(data []byte, width, height int, palette []byte) ([]byte, error) {
	if err := rasterLen(data, (width*height+1)/2); err != nil {
		return nil, err
	}
	out := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		idx := data[i/2]
		if i%2 == 0 {
			idx &= 0x0F
		} else {
			idx >>= 4
		}
		copy(out[i*4:], palette[int(idx)*4:int(idx)*4+4])
	}
	return out, nil
}

func expand5(v uint8) uint8 { return v<<3 | v>>2 }
func expand6(v uint8) uint8 { return v<<2 | v>>4 }

// decodeDXT decompresses S3TC blocks. DXT1 blocks are 8 bytes with an
// implicit 1-bit alpha mode; DXT3 blocks prepend 8 bytes of explicit
// 4-bit alpha and always use the 4-color palette.
func decodeDXT(data []byte, width, height int, dxt3 bool) ([]byte, error) {
	blockSize := 8
	if dxt3 {
		blockSize = 16
	}
	blocksX := (width + 3) / 4
	blocksY := (height + 3) / 4
	if err := rasterLen(data, blocksX*blocksY*blockSize); err != nil {
		return nil, err
	}

	out := make([]byte, width*height*4)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			block := data[(by*blocksX+bx)*blockSize:]

			var alpha uint64
			if dxt3 {
				alpha = binary.LittleEndian.Uint64(block)
				block = block[8:]
			}

			c0 := binary.LittleEndian.Uint16(block)
			c1 := binary.LittleEndian.Uint16(block[2:])
			bits := binary.LittleEndian.Uint32(block[4:])

			var colors [4][4]byte
			colors[0] = decode565(c0)
			colors[1] = decode565(c1)
			if c0 > c1 || dxt3 {
				for i := 0; i < 3; i++ {
					colors[2][i] = uint8((2*int(colors[0][i]) + int(colors[1][i])) / 3)
					colors[3][i] = uint8((int(colors[0][i]) + 2*int(colors[1][i])) / 3)
				}
				colors[2][3] = 0xFF
				colors[3][3] = 0xFF
			} else {
				for i := 0; i < 3; i++ {
					colors[2][i] = uint8((int(colors[0][i]) + int(colors[1][i])) / 2)
				}
				colors[2][3] = 0xFF
				colors[3] = [4]byte{0, 0, 0, 0}
			}

			for py := 0; py < 4; py++ {
				for px := 0; px < 4; px++ {
					x := bx*4 + px
					y := by*4 + py
					if x >= width || y >= height {
						continue
					}
					idx := bits >> uint(2*(py*4+px)) & 0x3
					p := colors[idx]
					if dxt3 {
						a := uint8(alpha >> uint(4*(py*4+px)) & 0xF)
						p[3] = a * 17
					}
					copy(out[(y*width+x)*4:], p[:])
				}
			}
		}
	}
	return out, nil
}
