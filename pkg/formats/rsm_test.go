package formats

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseRSM_MagicValidation(t *testing.T) {
	valid := encodeRSM(t, &RSM{Version: RSMVersion{1, 5}})

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid magic", valid, nil},
		{"invalid magic", append([]byte("XXXX"), valid[4:]...), ErrInvalidRSMMagic},
		{"empty data", []byte{}, ErrTruncatedRSMData},
		{"truncated data", []byte{'G', 'R', 'S'}, ErrTruncatedRSMData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRSM(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRSM_VersionSupport(t *testing.T) {
	tests := []struct {
		name    string
		major   uint8
		minor   uint8
		wantErr bool
	}{
		{"v1.1", 1, 1, false},
		{"v1.2", 1, 2, false},
		{"v1.4", 1, 4, false},
		{"v1.5", 1, 5, false},
		{"v2.3", 2, 3, false},
		{"v0.1 unsupported", 0, 1, true},
		{"v3.0 unsupported", 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeRSM(t, sampleRSM(RSMVersion{tt.major, tt.minor}))
			_, err := ParseRSM(data)
			if (err != nil) != tt.wantErr {
				t.Errorf("version %d.%d: got error=%v, wantErr=%v", tt.major, tt.minor, err, tt.wantErr)
			}
		})
	}
}

func TestRSMVersion_AtLeast(t *testing.T) {
	tests := []struct {
		version RSMVersion
		major   uint8
		minor   uint8
		want    bool
	}{
		{RSMVersion{1, 5}, 1, 5, true},
		{RSMVersion{1, 5}, 1, 4, true},
		{RSMVersion{1, 5}, 1, 6, false},
		{RSMVersion{1, 5}, 2, 0, false},
		{RSMVersion{2, 3}, 1, 9, true},
		{RSMVersion{2, 3}, 2, 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			if got := tt.version.AtLeast(tt.major, tt.minor); got != tt.want {
				t.Errorf("AtLeast(%d, %d) = %v, want %v", tt.major, tt.minor, got, tt.want)
			}
		})
	}
}

func TestRSMShadingType_String(t *testing.T) {
	tests := []struct {
		shading RSMShadingType
		want    string
	}{
		{RSMShadingNone, "None"},
		{RSMShadingFlat, "Flat"},
		{RSMShadingSmooth, "Smooth"},
		{RSMShadingType(7), "Unknown(7)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.shading.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRSM_Structure(t *testing.T) {
	for _, version := range []RSMVersion{{1, 1}, {1, 4}, {1, 5}} {
		t.Run(version.String(), func(t *testing.T) {
			want := sampleRSM(version)
			got, err := ParseRSM(encodeRSM(t, want))
			if err != nil {
				t.Fatalf("ParseRSM: %v", err)
			}

			if got.AnimLength != want.AnimLength {
				t.Errorf("AnimLength = %d, want %d", got.AnimLength, want.AnimLength)
			}
			if got.RootNode != "root" {
				t.Errorf("RootNode = %q, want root", got.RootNode)
			}
			if len(got.Nodes) != 3 {
				t.Fatalf("node count = %d, want 3", len(got.Nodes))
			}

			leaf := got.GetNodeByName("잎")
			if leaf == nil {
				t.Fatal("EUC-KR node name did not decode")
			}
			if len(leaf.Vertices) != 3 || leaf.Vertices[2] != [3]float32{0, 1, 0} {
				t.Errorf("leaf vertices = %v", leaf.Vertices)
			}
			if len(leaf.Faces) != 1 || leaf.Faces[0].VertexIDs != [3]uint16{0, 1, 2} {
				t.Errorf("leaf faces = %v", leaf.Faces)
			}

			if version.AtLeast(1, 5) {
				if len(leaf.ScaleKeys) != 1 || len(leaf.PosKeys) != 0 {
					t.Errorf("v%s keys: pos=%d scale=%d", version, len(leaf.PosKeys), len(leaf.ScaleKeys))
				}
			} else if len(leaf.PosKeys) != 1 || len(leaf.ScaleKeys) != 0 {
				t.Errorf("v%s keys: pos=%d scale=%d", version, len(leaf.PosKeys), len(leaf.ScaleKeys))
			}

			if !version.AtLeast(1, 2) && leaf.TexCoords[0].Color != [4]uint8{255, 255, 255, 255} {
				t.Errorf("pre-1.2 vertex color = %v, want white", leaf.TexCoords[0].Color)
			}
		})
	}
}

func TestParseRSM_V14_Alpha(t *testing.T) {
	m := sampleRSM(RSMVersion{1, 4})
	m.Alpha = 128.0 / 255.0
	got, err := ParseRSM(encodeRSM(t, m))
	if err != nil {
		t.Fatalf("ParseRSM: %v", err)
	}
	if got.Alpha < m.Alpha-0.01 || got.Alpha > m.Alpha+0.01 {
		t.Errorf("Alpha = %f, want ~%f", got.Alpha, m.Alpha)
	}
}

func TestParseRSM_V13_NoAlpha(t *testing.T) {
	got, err := ParseRSM(encodeRSM(t, sampleRSM(RSMVersion{1, 3})))
	if err != nil {
		t.Fatalf("ParseRSM: %v", err)
	}
	if got.Alpha != 1.0 {
		t.Errorf("Alpha = %f, want 1.0", got.Alpha)
	}
}

func TestParseRSM_TruncatedNode(t *testing.T) {
	data := encodeRSM(t, sampleRSM(RSMVersion{1, 5}))
	_, err := ParseRSM(data[:len(data)/2])
	if !errors.Is(err, ErrTruncatedRSMData) {
		t.Errorf("got %v, want ErrTruncatedRSMData", err)
	}
}

func TestRSM_Counts(t *testing.T) {
	m := sampleRSM(RSMVersion{1, 5})
	if got := m.GetTotalVertexCount(); got != 7 {
		t.Errorf("GetTotalVertexCount() = %d, want 7", got)
	}
	if got := m.GetTotalFaceCount(); got != 2 {
		t.Errorf("GetTotalFaceCount() = %d, want 2", got)
	}
}

func TestRSM_Hierarchy(t *testing.T) {
	m := sampleRSM(RSMVersion{1, 5})

	if root := m.GetRootNode(); root == nil || root.Name != "root" {
		t.Fatalf("GetRootNode = %v", root)
	}
	if children := m.GetChildNodes("root"); len(children) != 1 {
		t.Errorf("GetChildNodes(root) = %d, want 1", len(children))
	}
	if m.GetNodeByName("nonexistent") != nil {
		t.Error("GetNodeByName returned non-nil for nonexistent node")
	}

	tests := []struct {
		node string
		want string
	}{
		{"root", "root"},
		{"arm", "root/arm"},
		{"잎", "root/arm/잎"},
	}
	for _, tt := range tests {
		if got := m.NodePath(m.GetNodeByName(tt.node)); got != tt.want {
			t.Errorf("NodePath(%s) = %q, want %q", tt.node, got, tt.want)
		}
	}
}

func TestRSM_NodePathCycle(t *testing.T) {
	m := &RSM{Nodes: []RSMNode{
		{Name: "a", Parent: "b"},
		{Name: "b", Parent: "a"},
	}}
	if got := m.NodePath(&m.Nodes[0]); got != "b/a" {
		t.Errorf("NodePath = %q, want b/a", got)
	}
}

func TestRSM_HasAnimation(t *testing.T) {
	if !sampleRSM(RSMVersion{1, 5}).HasAnimation() {
		t.Error("sample model should be animated")
	}
	static := &RSM{Nodes: []RSMNode{{Name: "root"}}}
	if static.HasAnimation() {
		t.Error("static model reported animation")
	}
}

// sampleRSM builds a three-node chain root -> arm -> 잎 (leaf). Only the
// leaf and the root carry geometry.
func sampleRSM(version RSMVersion) *RSM {
	identity := [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	tri := []RSMFace{{VertexIDs: [3]uint16{0, 1, 2}, TexCoordIDs: [3]uint16{0, 1, 2}}}
	tcs := []RSMTexCoord{
		{Color: [4]uint8{255, 0, 0, 255}, U: 0, V: 0},
		{Color: [4]uint8{0, 255, 0, 255}, U: 1, V: 0},
		{Color: [4]uint8{0, 0, 255, 255}, U: 0, V: 1},
	}

	leaf := RSMNode{
		Name:      "잎",
		Parent:    "arm",
		Matrix:    identity,
		Scale:     [3]float32{1, 1, 1},
		Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		TexCoords: tcs,
		Faces:     tri,
		RotKeys:   []RSMRotKeyframe{{Frame: 0, Quaternion: [4]float32{0, 0, 0, 1}}},
	}
	if version.AtLeast(1, 5) {
		leaf.ScaleKeys = []RSMScaleKeyframe{{Frame: 0, Scale: [3]float32{1, 1, 1}}}
	} else {
		leaf.PosKeys = []RSMPosKeyframe{{Frame: 0, Position: [3]float32{0, 0, 0}}}
	}

	return &RSM{
		Version:    version,
		AnimLength: 1000,
		Shading:    RSMShadingSmooth,
		Alpha:      1,
		Textures:   []string{"wood.bmp"},
		RootNode:   "root",
		Nodes: []RSMNode{
			{
				Name:       "root",
				TextureIDs: []int32{0},
				Matrix:     identity,
				Scale:      [3]float32{1, 1, 1},
				Vertices:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
				TexCoords:  tcs,
				Faces:      tri,
			},
			{Name: "arm", Parent: "root", Matrix: identity, Scale: [3]float32{1, 1, 1}},
			leaf,
		},
	}
}

func encodeRSM(t *testing.T, m *RSM) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}
