// Package formats provides codecs for the mesh cache formats the reader can
// ingest: the GVC voxel cache and legacy RSM keyframed models.
package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Faultbox/geomcache/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
	ErrInvalidRSMCount       = errors.New("invalid RSM element count")
)

// Sanity limits for counts read from a model.
const (
	maxRSMNodes    = 10000
	maxRSMElements = 100000
	maxRSMKeys     = 10000
	rsmNameSize    = 40
)

// RSMVersion represents a file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// RSMShadingType represents the shading mode for rendering.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord is a texture coordinate with its vertex color.
type RSMTexCoord struct {
	Color [4]uint8 // RGBA (v1.2+, white before)
	U, V  float32
}

// RSMFace is a triangle of a node mesh.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16 // Index into the node's TextureIDs
	Padding     uint16
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe is a position keyframe (v < 1.5).
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe is a rotation keyframe.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32 // X, Y, Z, W
}

// RSMScaleKeyframe is a scale keyframe (v >= 1.5).
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one node of the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string // Empty for the root
	TextureIDs []int32

	Matrix   [9]float32 // 3x3 rotation, row-major
	Offset   [3]float32 // Pivot
	Position [3]float32
	RotAngle float32 // Radians
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe
}

// HasAnimation reports whether the node carries any keyframes.
func (n *RSMNode) HasAnimation() bool {
	return len(n.PosKeys) > 0 || len(n.RotKeys) > 0 || len(n.ScaleKeys) > 0
}

// RSMVolumeBox is a bounding volume box.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM represents a parsed model file.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // Milliseconds
	Shading     RSMShadingType
	Alpha       float32
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 14 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != "GRSM" {
		return nil, ErrInvalidRSMMagic
	}

	r := newBinReader(data[4:], ErrTruncatedRSMData)
	rsm := &RSM{}

	r.read(&rsm.Version.Major)
	r.read(&rsm.Version.Minor)
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	r.read(&rsm.AnimLength)
	r.read(&rsm.Shading)

	rsm.Alpha = 1.0
	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		r.read(&alpha)
		rsm.Alpha = float32(alpha) / 255.0
	}

	r.skip(16) // reserved

	textureCount := r.count32(maxRSMElements, ErrInvalidRSMCount)
	for i := int32(0); i < textureCount && r.err == nil; i++ {
		rsm.Textures = append(rsm.Textures, r.fixedString(rsmNameSize))
	}

	rsm.RootNode = r.fixedString(rsmNameSize)

	nodeCount := r.count32(maxRSMNodes, ErrInvalidNodeCount)
	if r.err != nil {
		return nil, r.err
	}

	rsm.Nodes = make([]RSMNode, 0, nodeCount)
	for i := int32(0); i < nodeCount; i++ {
		node := parseRSMNode(r, rsm.Version)
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
		rsm.Nodes = append(rsm.Nodes, node)
	}

	// Volume boxes are optional trailing data.
	if r.remaining() >= 4 {
		boxCount := r.count32(1000, ErrInvalidRSMCount)
		if r.err != nil {
			return rsm, nil
		}
		for i := int32(0); i < boxCount && r.err == nil; i++ {
			var box RSMVolumeBox
			r.read(&box.Size)
			r.read(&box.Position)
			r.read(&box.Rotation)
			if rsm.Version.AtLeast(1, 3) {
				r.read(&box.Flag)
			}
			if r.err == nil {
				rsm.VolumeBoxes = append(rsm.VolumeBoxes, box)
			}
		}
	}

	return rsm, nil
}

func parseRSMNode(r *binReader, version RSMVersion) RSMNode {
	var node RSMNode

	node.Name = r.fixedString(rsmNameSize)
	node.Parent = r.fixedString(rsmNameSize)

	textureCount := r.count32(maxRSMElements, ErrInvalidRSMCount)
	if textureCount > 0 && r.err == nil {
		node.TextureIDs = make([]int32, textureCount)
		r.read(node.TextureIDs)
	}

	r.read(&node.Matrix)
	r.read(&node.Offset)
	r.read(&node.Position)
	r.read(&node.RotAngle)
	r.read(&node.RotAxis)
	r.read(&node.Scale)

	vertexCount := r.count32(maxRSMElements, ErrInvalidRSMCount)
	if vertexCount > 0 && r.err == nil {
		node.Vertices = make([][3]float32, vertexCount)
		r.read(node.Vertices)
	}

	texCoordCount := r.count32(maxRSMElements, ErrInvalidRSMCount)
	if texCoordCount > 0 && r.err == nil {
		node.TexCoords = make([]RSMTexCoord, texCoordCount)
		for i := range node.TexCoords {
			tc := &node.TexCoords[i]
			if version.AtLeast(1, 2) {
				r.read(&tc.Color)
			} else {
				tc.Color = [4]uint8{255, 255, 255, 255}
			}
			r.read(&tc.U)
			r.read(&tc.V)
		}
	}

	faceCount := r.count32(maxRSMElements, ErrInvalidRSMCount)
	if faceCount > 0 && r.err == nil {
		node.Faces = make([]RSMFace, faceCount)
		for i := range node.Faces {
			face := &node.Faces[i]
			r.read(&face.VertexIDs)
			r.read(&face.TexCoordIDs)
			r.read(&face.TextureID)
			r.read(&face.Padding)
			r.read(&face.TwoSide)
			if version.AtLeast(1, 2) {
				r.read(&face.SmoothGroup)
			}
		}
	}

	if !version.AtLeast(1, 5) {
		n := r.count32(maxRSMKeys, ErrInvalidRSMCount)
		if n > 0 && r.err == nil {
			node.PosKeys = make([]RSMPosKeyframe, n)
			r.read(node.PosKeys)
		}
	}

	n := r.count32(maxRSMKeys, ErrInvalidRSMCount)
	if n > 0 && r.err == nil {
		node.RotKeys = make([]RSMRotKeyframe, n)
		r.read(node.RotKeys)
	}

	if version.AtLeast(1, 5) {
		n := r.count32(maxRSMKeys, ErrInvalidRSMCount)
		if n > 0 && r.err == nil {
			node.ScaleKeys = make([]RSMScaleKeyframe, n)
			r.read(node.ScaleKeys)
		}
	}

	return node
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// Write encodes the model to w in its own version's layout.
func (rsm *RSM) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	v := rsm.Version

	bw.WriteString("GRSM")
	binary.Write(bw, le, v.Major)
	binary.Write(bw, le, v.Minor)
	binary.Write(bw, le, rsm.AnimLength)
	binary.Write(bw, le, rsm.Shading)
	if v.AtLeast(1, 4) {
		binary.Write(bw, le, uint8(rsm.Alpha*255+0.5))
	}
	bw.Write(make([]byte, 16))

	binary.Write(bw, le, int32(len(rsm.Textures)))
	for _, tex := range rsm.Textures {
		bw.Write(encoding.UTF8ToFixedString(tex, rsmNameSize))
	}
	bw.Write(encoding.UTF8ToFixedString(rsm.RootNode, rsmNameSize))

	binary.Write(bw, le, int32(len(rsm.Nodes)))
	for i := range rsm.Nodes {
		writeRSMNode(bw, &rsm.Nodes[i], v)
	}

	binary.Write(bw, le, int32(len(rsm.VolumeBoxes)))
	for _, box := range rsm.VolumeBoxes {
		binary.Write(bw, le, box.Size)
		binary.Write(bw, le, box.Position)
		binary.Write(bw, le, box.Rotation)
		if v.AtLeast(1, 3) {
			binary.Write(bw, le, box.Flag)
		}
	}

	return bw.Flush()
}

func writeRSMNode(w io.Writer, node *RSMNode, v RSMVersion) {
	le := binary.LittleEndian

	w.Write(encoding.UTF8ToFixedString(node.Name, rsmNameSize))
	w.Write(encoding.UTF8ToFixedString(node.Parent, rsmNameSize))

	binary.Write(w, le, int32(len(node.TextureIDs)))
	binary.Write(w, le, node.TextureIDs)

	binary.Write(w, le, node.Matrix)
	binary.Write(w, le, node.Offset)
	binary.Write(w, le, node.Position)
	binary.Write(w, le, node.RotAngle)
	binary.Write(w, le, node.RotAxis)
	binary.Write(w, le, node.Scale)

	binary.Write(w, le, int32(len(node.Vertices)))
	binary.Write(w, le, node.Vertices)

	binary.Write(w, le, int32(len(node.TexCoords)))
	for _, tc := range node.TexCoords {
		if v.AtLeast(1, 2) {
			binary.Write(w, le, tc.Color)
		}
		binary.Write(w, le, tc.U)
		binary.Write(w, le, tc.V)
	}

	binary.Write(w, le, int32(len(node.Faces)))
	for _, f := range node.Faces {
		binary.Write(w, le, f.VertexIDs)
		binary.Write(w, le, f.TexCoordIDs)
		binary.Write(w, le, f.TextureID)
		binary.Write(w, le, f.Padding)
		binary.Write(w, le, f.TwoSide)
		if v.AtLeast(1, 2) {
			binary.Write(w, le, f.SmoothGroup)
		}
	}

	if !v.AtLeast(1, 5) {
		binary.Write(w, le, int32(len(node.PosKeys)))
		binary.Write(w, le, node.PosKeys)
	}
	binary.Write(w, le, int32(len(node.RotKeys)))
	binary.Write(w, le, node.RotKeys)
	if v.AtLeast(1, 5) {
		binary.Write(w, le, int32(len(node.ScaleKeys)))
		binary.Write(w, le, node.ScaleKeys)
	}
}

// GetTotalVertexCount returns the total number of vertices across all nodes.
func (rsm *RSM) GetTotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// GetTotalFaceCount returns the total number of faces across all nodes.
func (rsm *RSM) GetTotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// GetNodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) GetNodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// GetRootNode returns the node named by RootNode.
func (rsm *RSM) GetRootNode() *RSMNode {
	return rsm.GetNodeByName(rsm.RootNode)
}

// GetChildNodes returns all nodes that have the given parent name.
func (rsm *RSM) GetChildNodes(parentName string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == parentName {
			children = append(children, &rsm.Nodes[i])
		}
	}
	return children
}

// NodePath returns the slash-separated path from the root to the node,
// e.g. "root/arm/hand". Broken parent links end the path early.
func (rsm *RSM) NodePath(node *RSMNode) string {
	parts := []string{node.Name}
	seen := map[string]bool{node.Name: true}
	for parent := node.Parent; parent != "" && !seen[parent]; {
		p := rsm.GetNodeByName(parent)
		if p == nil {
			break
		}
		seen[parent] = true
		parts = append(parts, p.Name)
		parent = p.Parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// HasAnimation returns true if the model has any animation keyframes.
func (rsm *RSM) HasAnimation() bool {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].HasAnimation() {
			return true
		}
	}
	return false
}
