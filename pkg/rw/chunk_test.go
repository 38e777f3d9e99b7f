package rw

import (
	"bytes"
	"encoding/binary"
	"errors"
	gomath "math"
	"testing"
)

// Packed library-ID stamps used by the three supported generations.
const (
	stampSA  uint32 = 0x1803FFFF // unpacks to 0x36000
	stampVC  uint32 = 0x0C02FFFF // unpacks to 0x33000
	stampIII uint32 = 0x0800FFFF // unpacks to 0x32000
)

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func f32le(v float32) []byte {
	return le32(gomath.Float32bits(v))
}

// chunk assembles a chunk with its 12-byte header around the
// concatenated parts.
func chunk(typ, stamp uint32, parts ...[]byte) []byte {
	var payload bytes.Buffer
	for _, p := range parts {
		payload.Write(p)
	}
	var out bytes.Buffer
	out.Write(le32(typ))
	out.Write(le32(uint32(payload.Len())))
	out.Write(le32(stamp))
	out.Write(payload.Bytes())
	return out.Bytes()
}

func TestUnpackVersion(t *testing.T) {
	tests := []struct {
		name  string
		stamp uint32
		want  uint32
	}{
		{"sa", stampSA, 0x36000},
		{"vc", stampVC, 0x33000},
		{"iii", stampIII, 0x32000},
		{"pre31 direct", 0x0310, 0x31000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnpackVersion(tt.stamp); got != tt.want {
				t.Errorf("UnpackVersion(0x%X) = 0x%X, want 0x%X", tt.stamp, got, tt.want)
			}
		})
	}
}

func TestDetectBuild(t *testing.T) {
	tests := []struct {
		stamp uint32
		want  GameBuild
	}{
		{stampSA, BuildSA},
		{stampVC, BuildVC},
		{stampIII, BuildIII},
	}

	for _, tt := range tests {
		if got := DetectBuild(tt.stamp); got != tt.want {
			t.Errorf("DetectBuild(0x%X) = %v, want %v", tt.stamp, got, tt.want)
		}
	}
}

func TestReadHeader_Truncated(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.ReadHeader(); !errors.Is(err, ErrTruncatedHeader) {
		t.Errorf("err = %v, want ErrTruncatedHeader", err)
	}
}

func TestReadHeader_Overflow(t *testing.T) {
	// declared payload of 100 bytes, none present
	data := append(append(le32(ChunkStruct), le32(100)...), le32(stampSA)...)
	r := NewReader(data)
	if _, err := r.ReadHeader(); !errors.Is(err, ErrChunkOverflow) {
		t.Errorf("err = %v, want ErrChunkOverflow", err)
	}
}

func TestReadChildHeader_EscapesParent(t *testing.T) {
	// child fits the buffer but passes its parent's end
	inner := chunk(ChunkStruct, stampSA, make([]byte, 8))
	data := append(inner, make([]byte, 16)...)
	r := NewReader(data)
	if _, err := r.ReadChildHeader(headerSize + 4); !errors.Is(err, ErrChunkOverflow) {
		t.Errorf("err = %v, want ErrChunkOverflow", err)
	}
}

func TestReader_Scalars(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0xAB)
	buf.Write(le16(0x1234))
	buf.Write(le32(0xDEADBEEF))
	buf.Write(le32(0xFFFFFFFF)) // -1 as int32
	buf.Write(f32le(1.5))

	r := NewReader(buf.Bytes())
	if v, err := r.U8(); err != nil || v != 0xAB {
		t.Errorf("U8() = %v, %v", v, err)
	}
	if v, err := r.U16(); err != nil || v != 0x1234 {
		t.Errorf("U16() = %v, %v", v, err)
	}
	if v, err := r.U32(); err != nil || v != 0xDEADBEEF {
		t.Errorf("U32() = %v, %v", v, err)
	}
	if v, err := r.I32(); err != nil || v != -1 {
		t.Errorf("I32() = %v, %v", v, err)
	}
	if v, err := r.F32(); err != nil || v != 1.5 {
		t.Errorf("F32() = %v, %v", v, err)
	}
	if _, err := r.U8(); !errors.Is(err, ErrTruncatedHeader) {
		t.Errorf("read past end = %v, want ErrTruncatedHeader", err)
	}
}

func TestReader_Vec3Mat3(t *testing.T) {
	var buf bytes.Buffer
	for _, f := range []float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 7, 8, 9} {
		buf.Write(f32le(f))
	}

	r := NewReader(buf.Bytes())
	m, err := r.Mat3()
	if err != nil {
		t.Fatalf("Mat3() error: %v", err)
	}
	if m.Right.X != 1 || m.Up.Y != 1 || m.At.Z != 1 {
		t.Errorf("Mat3() = %+v", m)
	}
	v, err := r.Vec3()
	if err != nil || v.X != 7 || v.Y != 8 || v.Z != 9 {
		t.Errorf("Vec3() = %v, %v", v, err)
	}
}

func TestReader_String(t *testing.T) {
	r := NewReader([]byte("tex\x00pad\x00"))
	s, err := r.String(8)
	if err != nil || s != "tex" {
		t.Errorf("String() = %q, %v", s, err)
	}
	if r.Pos() != 8 {
		t.Errorf("cursor at %d after fixed-length read, want 8", r.Pos())
	}
}

func TestWalk(t *testing.T) {
	data := chunk(ChunkClump, stampSA,
		chunk(ChunkStruct, stampSA, le32(1), le32(0), le32(0)),
		chunk(ChunkExtension, stampSA),
	)

	var seen []uint32
	var depths []int
	err := Walk(data, func(h ChunkHeader, depth int) error {
		seen = append(seen, h.Type)
		depths = append(depths, depth)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	wantTypes := []uint32{ChunkClump, ChunkStruct, ChunkExtension}
	wantDepths := []int{0, 1, 1}
	for i := range wantTypes {
		if i >= len(seen) || seen[i] != wantTypes[i] || depths[i] != wantDepths[i] {
			t.Fatalf("Walk order = %v depths %v, want %v %v", seen, depths, wantTypes, wantDepths)
		}
	}
}

func TestChunkTypeName(t *testing.T) {
	if got := ChunkTypeName(ChunkClump); got != "Clump" {
		t.Errorf("ChunkTypeName(Clump) = %q", got)
	}
	if got := ChunkTypeName(0xBEEF); got != "Unknown(0xBEEF)" {
		t.Errorf("ChunkTypeName(0xBEEF) = %q", got)
	}
}
