// Package rw provides parsers for RenderWare binary streams (DFF model
// clumps and TXD texture dictionaries).
package rw

import (
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/dff2glb/pkg/math"
)

// Stream structure errors.
var (
	ErrTruncatedHeader    = errors.New("truncated chunk header")
	ErrChunkOverflow      = errors.New("chunk overflows its parent")
	ErrUnsupportedVersion = errors.New("unsupported chunk version")
)

// Chunk type identifiers.
const (
	ChunkStruct            uint32 = 0x0001
	ChunkString            uint32 = 0x0002
	ChunkExtension         uint32 = 0x0003
	ChunkTexture           uint32 = 0x0006
	ChunkMaterial          uint32 = 0x0007
	ChunkMaterialList      uint32 = 0x0008
	ChunkFrameList         uint32 = 0x000E
	ChunkGeometry          uint32 = 0x000F
	ChunkClump             uint32 = 0x0010
	ChunkAtomic            uint32 = 0x0014
	ChunkTextureNative     uint32 = 0x0015
	ChunkTextureDictionary uint32 = 0x0016
	ChunkGeometryList      uint32 = 0x001A
	ChunkSkin              uint32 = 0x0116
	ChunkHAnim             uint32 = 0x011E
	ChunkNodeName          uint32 = 0x0253F2FE
)

// headerSize is the fixed size of a chunk header: type, size, version.
const headerSize = 12

// maxChunkDepth bounds chunk-tree nesting. Well-formed game assets nest a
// handful of levels; anything deeper is treated as a corrupt stream.
const maxChunkDepth = 32

// ChunkHeader describes one chunk in the stream.
type ChunkHeader struct {
	Type    uint32
	Size    uint32
	Version uint32 // packed library-ID stamp
	Offset  int    // payload start within the buffer
}

// End returns the first byte offset past the chunk payload.
func (h ChunkHeader) End() int {
	return h.Offset + int(h.Size)
}

// GameBuild identifies which engine generation produced the file.
// It selects per-game parse quirks.
type GameBuild int

const (
	BuildIII GameBuild = iota // RenderWare 3.1-3.2
	BuildVC                   // RenderWare 3.3-3.4
	BuildSA                   // RenderWare 3.5-3.6
)

// String returns a human-readable build name.
func (b GameBuild) String() string {
	switch b {
	case BuildIII:
		return "III"
	case BuildVC:
		return "VC"
	case BuildSA:
		return "SA"
	default:
		return fmt.Sprintf("Unknown(%d)", int(b))
	}
}

// UnpackVersion decodes a packed library-ID stamp into a 0x3xxxx version
// number. Pre-3.1 files store the version number directly.
func UnpackVersion(stamp uint32) uint32 {
	if stamp&0xFFFF0000 != 0 {
		return ((stamp >> 14) & 0x3FF00) + 0x30000
	}
	return stamp << 8
}

// DetectBuild maps an unpacked version number onto a game build.
func DetectBuild(stamp uint32) GameBuild {
	v := UnpackVersion(stamp)
	switch {
	case v >= 0x35000:
		return BuildSA
	case v >= 0x33000:
		return BuildVC
	default:
		return BuildIII
	}
}

// Reader is a cursor over a byte buffer. All reads are little-endian and
// bounds-checked; a failed read reports how far the cursor got.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int { return r.pos }

// Seek moves the cursor to an absolute position.
func (r *Reader) Seek(pos int) { r.pos = pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// ReadHeader reads the next chunk header. It fails with
// ErrTruncatedHeader if fewer than 12 bytes remain and with
// ErrChunkOverflow if the declared payload passes the end of the buffer.
func (r *Reader) ReadHeader() (ChunkHeader, error) {
	if r.Remaining() < headerSize {
		return ChunkHeader{}, fmt.Errorf("%w: %d bytes at offset %d", ErrTruncatedHeader, r.Remaining(), r.pos)
	}
	h := ChunkHeader{
		Type:    binary.LittleEndian.Uint32(r.data[r.pos:]),
		Size:    binary.LittleEndian.Uint32(r.data[r.pos+4:]),
		Version: binary.LittleEndian.Uint32(r.data[r.pos+8:]),
		Offset:  r.pos + headerSize,
	}
	if h.End() > len(r.data) {
		return ChunkHeader{}, fmt.Errorf("%w: chunk 0x%X size %d at offset %d", ErrChunkOverflow, h.Type, h.Size, r.pos)
	}
	r.pos = h.Offset
	return h, nil
}

// ReadChildHeader reads a chunk header that must be fully contained
// within a parent ending at parentEnd.
func (r *Reader) ReadChildHeader(parentEnd int) (ChunkHeader, error) {
	h, err := r.ReadHeader()
	if err != nil {
		return ChunkHeader{}, err
	}
	if h.End() > parentEnd {
		return ChunkHeader{}, fmt.Errorf("%w: child 0x%X ends at %d, parent at %d", ErrChunkOverflow, h.Type, h.End(), parentEnd)
	}
	return h, nil
}

// Skip advances the cursor past n bytes.
func (r *Reader) Skip(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("%w: skipping %d bytes at offset %d", ErrTruncatedHeader, n, r.pos)
	}
	r.pos += n
	return nil
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: reading %d bytes at offset %d", ErrTruncatedHeader, n, r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// U8 reads one unsigned byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// I32 reads a little-endian int32.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// F32 reads a little-endian float32.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return gomath.Float32frombits(v), err
}

// Vec3 reads three float32 components.
func (r *Reader) Vec3() (math.Vec3, error) {
	b, err := r.Bytes(12)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{
		X: gomath.Float32frombits(binary.LittleEndian.Uint32(b)),
		Y: gomath.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: gomath.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

// Mat3 reads a 3x3 rotation matrix stored as right, up, at vectors.
func (r *Reader) Mat3() (math.Mat3, error) {
	right, err := r.Vec3()
	if err != nil {
		return math.Mat3{}, err
	}
	up, err := r.Vec3()
	if err != nil {
		return math.Mat3{}, err
	}
	at, err := r.Vec3()
	if err != nil {
		return math.Mat3{}, err
	}
	return math.Mat3{Right: right, Up: up, At: at}, nil
}

// Mat4 reads a 4x4 matrix stored column-major.
func (r *Reader) Mat4() (math.Mat4, error) {
	b, err := r.Bytes(64)
	if err != nil {
		return math.Mat4{}, err
	}
	var m math.Mat4
	for i := range m {
		m[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return m, nil
}

// String reads a fixed-length null-terminated string.
func (r *Reader) String(length int) (string, error) {
	b, err := r.Bytes(length)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}
