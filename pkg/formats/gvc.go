// GVC (Geometry Voxel Cache) container for time-sampled meshes.

package formats

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// GVC format errors.
var (
	ErrInvalidGVCMagic       = errors.New("invalid GVC magic: expected 'GVCF'")
	ErrUnsupportedGVCVersion = errors.New("unsupported GVC version")
	ErrTruncatedGVCData      = errors.New("truncated GVC data")
	ErrInvalidGVCCount       = errors.New("invalid GVC element count")
	ErrGVCKindMismatch       = errors.New("GVC channel kind mismatch")
	ErrGVCPayloadSize        = errors.New("GVC payload exceeds its declared size")
)

const gvcMagic = "GVCF"

// Sanity limits for counts read from a file.
const (
	maxGVCStrings  = 1 << 20
	maxGVCVoxels   = 1 << 20
	maxGVCSamples  = 1 << 12
	maxGVCChannels = 1 << 10
	maxGVCElements = 1 << 26
	maxGVCPayload  = 1 << 30
)

// GVCVersion is the current container version.
var GVCVersion = RSMVersion{Major: 1, Minor: 0}

// Voxel flags.
const (
	GVCFlagGeometry  uint32 = 1 << 0
	GVCFlagPreview   uint32 = 1 << 1
	GVCFlagInstance  uint32 = 1 << 2
	GVCFlagHair      uint32 = 1 << 3
	GVCFlagParticles uint32 = 1 << 4
)

// GVCKind describes how a channel payload is laid out.
type GVCKind uint8

const (
	GVCKindRaw     GVCKind = 0 // Opaque bytes
	GVCKindVector  GVCKind = 1 // 3 x float32 per element
	GVCKindFace    GVCKind = 2 // 3 x int32 per element
	GVCKindInt     GVCKind = 3 // int32 per element
	GVCKindStrings GVCKind = 4 // uint16 length-prefixed strings
)

// String returns a human-readable kind name.
func (k GVCKind) String() string {
	switch k {
	case GVCKindRaw:
		return "Raw"
	case GVCKindVector:
		return "Vector"
	case GVCKindFace:
		return "Face"
	case GVCKindInt:
		return "Int"
	case GVCKindStrings:
		return "Strings"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// elementSize returns the payload bytes per element, or 0 when variable.
func (k GVCKind) elementSize() int {
	switch k {
	case GVCKindVector, GVCKindFace:
		return 12
	case GVCKindInt:
		return 4
	default:
		return 0
	}
}

// GVCChannel is one data stream of a voxel sample. The payload is kept as
// stored; Decode* methods decompress and parse it on demand.
type GVCChannel struct {
	ID         uint16
	DepID      uint16 // Channel this one depends on (e.g. its topology)
	Kind       GVCKind
	Elements   uint32
	Compressed bool
	Payload    []byte
}

// GVCSample is one time sample of a voxel.
type GVCSample struct {
	Time      float64     // Frame time of the sample
	Transform [16]float32 // Column-major world transform
	Channels  []GVCChannel
}

// Channel returns the channel with the given id, or nil.
func (s *GVCSample) Channel(id uint16) *GVCChannel {
	for i := range s.Channels {
		if s.Channels[i].ID == id {
			return &s.Channels[i]
		}
	}
	return nil
}

// GVCVoxel is one object of the cache with its time samples in ascending
// time order.
type GVCVoxel struct {
	Flags   uint32
	NameID  uint32 // 1-based index into GVC.Strings, 0 for none
	Samples []GVCSample
}

// Has reports whether all bits of flag are set.
func (v *GVCVoxel) Has(flag uint32) bool {
	return v.Flags&flag == flag
}

// GVC represents a parsed voxel cache file.
type GVC struct {
	Version RSMVersion
	FPS     float32
	Strings []string
	Voxels  []GVCVoxel
}

// String resolves a 1-based string id.
func (g *GVC) String(id uint32) (string, bool) {
	if id == 0 || int(id) > len(g.Strings) {
		return "", false
	}
	return g.Strings[id-1], true
}

// AddString appends s to the string table and returns its id.
func (g *GVC) AddString(s string) uint32 {
	for i, existing := range g.Strings {
		if existing == s {
			return uint32(i + 1)
		}
	}
	g.Strings = append(g.Strings, s)
	return uint32(len(g.Strings))
}

// ParseGVC parses GVC data from a byte slice.
func ParseGVC(data []byte) (*GVC, error) {
	if len(data) < 10 {
		return nil, ErrTruncatedGVCData
	}
	if string(data[:4]) != gvcMagic {
		return nil, ErrInvalidGVCMagic
	}

	r := newBinReader(data[4:], ErrTruncatedGVCData)
	g := &GVC{}

	r.read(&g.Version.Major)
	r.read(&g.Version.Minor)
	if g.Version.Major != GVCVersion.Major {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGVCVersion, g.Version)
	}
	r.read(&g.FPS)

	stringCount := r.count(maxGVCStrings, ErrInvalidGVCCount)
	g.Strings = make([]string, 0, min(stringCount, 1024))
	for i := uint32(0); i < stringCount && r.err == nil; i++ {
		g.Strings = append(g.Strings, r.string16())
	}

	voxelCount := r.count(maxGVCVoxels, ErrInvalidGVCCount)
	g.Voxels = make([]GVCVoxel, 0, min(voxelCount, 1024))
	for i := uint32(0); i < voxelCount && r.err == nil; i++ {
		voxel := parseGVCVoxel(r)
		if r.err != nil {
			return nil, fmt.Errorf("parsing voxel %d: %w", i, r.err)
		}
		g.Voxels = append(g.Voxels, voxel)
	}

	if r.err != nil {
		return nil, r.err
	}
	return g, nil
}

func parseGVCVoxel(r *binReader) GVCVoxel {
	var v GVCVoxel
	r.read(&v.Flags)
	r.read(&v.NameID)

	sampleCount := r.count(maxGVCSamples, ErrInvalidGVCCount)
	for s := uint32(0); s < sampleCount && r.err == nil; s++ {
		var sample GVCSample
		r.read(&sample.Time)
		r.read(&sample.Transform)

		channelCount := r.count(maxGVCChannels, ErrInvalidGVCCount)
		for c := uint32(0); c < channelCount && r.err == nil; c++ {
			var ch GVCChannel
			var compressed uint8
			r.read(&ch.ID)
			r.read(&ch.DepID)
			r.read(&ch.Kind)
			ch.Elements = r.count(maxGVCElements, ErrInvalidGVCCount)
			r.read(&compressed)
			ch.Compressed = compressed != 0

			var payloadLen uint32
			r.read(&payloadLen)
			ch.Payload = r.bytes(payloadLen)
			sample.Channels = append(sample.Channels, ch)
		}
		v.Samples = append(v.Samples, sample)
	}
	return v
}

// ParseGVCFile parses a GVC file from disk.
func ParseGVCFile(path string) (*GVC, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GVC file: %w", err)
	}
	return ParseGVC(data)
}

// Write encodes the cache to w.
func (g *GVC) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	bw.WriteString(gvcMagic)
	binary.Write(bw, le, GVCVersion.Major)
	binary.Write(bw, le, GVCVersion.Minor)
	binary.Write(bw, le, g.FPS)

	binary.Write(bw, le, uint32(len(g.Strings)))
	for _, s := range g.Strings {
		if len(s) > math.MaxUint16 {
			return fmt.Errorf("string too long: %d bytes", len(s))
		}
		binary.Write(bw, le, uint16(len(s)))
		bw.WriteString(s)
	}

	binary.Write(bw, le, uint32(len(g.Voxels)))
	for _, v := range g.Voxels {
		binary.Write(bw, le, v.Flags)
		binary.Write(bw, le, v.NameID)
		binary.Write(bw, le, uint32(len(v.Samples)))
		for _, s := range v.Samples {
			binary.Write(bw, le, s.Time)
			binary.Write(bw, le, s.Transform)
			binary.Write(bw, le, uint32(len(s.Channels)))
			for _, ch := range s.Channels {
				var compressed uint8
				if ch.Compressed {
					compressed = 1
				}
				binary.Write(bw, le, ch.ID)
				binary.Write(bw, le, ch.DepID)
				binary.Write(bw, le, ch.Kind)
				binary.Write(bw, le, ch.Elements)
				binary.Write(bw, le, compressed)
				binary.Write(bw, le, uint32(len(ch.Payload)))
				bw.Write(ch.Payload)
			}
		}
	}

	return bw.Flush()
}

// Bytes encodes the cache into a new byte slice.
func (g *GVC) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGVCFile encodes the cache to a file.
func WriteGVCFile(path string, g *GVC) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// raw returns the uncompressed payload.
func (c *GVCChannel) raw() ([]byte, error) {
	if !c.Compressed {
		return c.Payload, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(c.Payload))
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", c.ID, err)
	}
	defer zr.Close()

	limit := c.maxRawSize()
	data, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("channel %d: %w", c.ID, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: channel %d inflates past %d bytes", ErrGVCPayloadSize, c.ID, limit)
	}
	return data, nil
}

// maxRawSize bounds the uncompressed payload by the declared element count.
func (c *GVCChannel) maxRawSize() int64 {
	var n int64
	switch size := c.Kind.elementSize(); {
	case size > 0:
		n = int64(c.Elements) * int64(size)
	case c.Kind == GVCKindStrings:
		n = int64(c.Elements) * (2 + math.MaxUint16)
	default:
		n = maxGVCPayload
	}
	return min(n, maxGVCPayload)
}

// payload returns the uncompressed payload after checking kind and size.
func (c *GVCChannel) payload(kind GVCKind) ([]byte, error) {
	if c.Kind != kind {
		return nil, fmt.Errorf("%w: channel %d is %s, want %s", ErrGVCKindMismatch, c.ID, c.Kind, kind)
	}
	data, err := c.raw()
	if err != nil {
		return nil, err
	}
	if size := kind.elementSize(); size > 0 && len(data) != int(c.Elements)*size {
		return nil, fmt.Errorf("%w: channel %d has %d bytes for %d elements", ErrTruncatedGVCData, c.ID, len(data), c.Elements)
	}
	return data, nil
}

// DecodeVectors decodes a vector channel.
func (c *GVCChannel) DecodeVectors() ([][3]float32, error) {
	data, err := c.payload(GVCKindVector)
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, c.Elements)
	for i := range out {
		off := i * 12
		out[i] = [3]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(data[off:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:])),
			math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:])),
		}
	}
	return out, nil
}

// DecodeFaces decodes a triangle topology channel into flat index triples.
func (c *GVCChannel) DecodeFaces() ([]int32, error) {
	data, err := c.payload(GVCKindFace)
	if err != nil {
		return nil, err
	}
	return decodeInt32s(data), nil
}

// DecodeInts decodes a per-element integer channel.
func (c *GVCChannel) DecodeInts() ([]int32, error) {
	data, err := c.payload(GVCKindInt)
	if err != nil {
		return nil, err
	}
	return decodeInt32s(data), nil
}

// DecodeStrings decodes a string list channel.
func (c *GVCChannel) DecodeStrings() ([]string, error) {
	data, err := c.payload(GVCKindStrings)
	if err != nil {
		return nil, err
	}
	r := newBinReader(data, ErrTruncatedGVCData)
	// Each string takes at least its 2-byte length.
	out := make([]string, 0, min(int(c.Elements), len(data)/2))
	for i := uint32(0); i < c.Elements && r.err == nil; i++ {
		out = append(out, r.string16())
	}
	if r.err != nil {
		return nil, fmt.Errorf("channel %d: %w", c.ID, r.err)
	}
	return out, nil
}

func decodeInt32s(data []byte) []int32 {
	out := make([]int32, len(data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// NewVectorChannel builds a vector channel.
func NewVectorChannel(id, depID uint16, vecs [][3]float32, compress bool) GVCChannel {
	buf := make([]byte, len(vecs)*12)
	for i, v := range vecs {
		binary.LittleEndian.PutUint32(buf[i*12:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[i*12+4:], math.Float32bits(v[1]))
		binary.LittleEndian.PutUint32(buf[i*12+8:], math.Float32bits(v[2]))
	}
	return newChannel(id, depID, GVCKindVector, uint32(len(vecs)), buf, compress)
}

// NewFaceChannel builds a triangle topology channel from flat index triples.
func NewFaceChannel(id, depID uint16, indices []int32, compress bool) GVCChannel {
	return newChannel(id, depID, GVCKindFace, uint32(len(indices)/3), encodeInt32s(indices), compress)
}

// NewIntChannel builds a per-element integer channel.
func NewIntChannel(id, depID uint16, values []int32, compress bool) GVCChannel {
	return newChannel(id, depID, GVCKindInt, uint32(len(values)), encodeInt32s(values), compress)
}

// NewStringsChannel builds a string list channel.
func NewStringsChannel(id uint16, values []string) GVCChannel {
	var buf bytes.Buffer
	for _, s := range values {
		binary.Write(&buf, binary.LittleEndian, uint16(len(s)))
		buf.WriteString(s)
	}
	return newChannel(id, 0, GVCKindStrings, uint32(len(values)), buf.Bytes(), false)
}

func encodeInt32s(values []int32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func newChannel(id, depID uint16, kind GVCKind, elements uint32, data []byte, compress bool) GVCChannel {
	ch := GVCChannel{ID: id, DepID: depID, Kind: kind, Elements: elements, Payload: data}
	if compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write(data)
		zw.Close()
		ch.Payload = buf.Bytes()
		ch.Compressed = true
	}
	return ch
}
