package meshfile

import (
	"fmt"

	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/formats"
)

// ExportGVC samples every voxel of src once per frame and packs the result
// into a voxel cache. src must be initialized and use st as its string
// table. Preview voxels are written once, from the first frame.
func ExportGVC(src MeshFile, st render.StringTable, frames []float64, fps float32) (*formats.GVC, error) {
	out := &formats.GVC{FPS: fps}
	src.SetParams(Params{})

	for i := 0; i < src.NumVoxels(); i++ {
		flags := src.VoxelFlags(i)
		voxel := formats.GVCVoxel{Flags: uint32(flags)}

		for f, frame := range frames {
			if f > 0 && flags.Has(FlagPreview) {
				break
			}
			src.SetCurrentFrame(frame)
			v, err := src.Voxel(i, 0)
			if err != nil {
				return nil, fmt.Errorf("voxel %d frame %v: %w", i, frame, err)
			}
			if voxel.NameID == 0 && v.NameID != 0 {
				if name, ok := st.Lookup(v.NameID); ok {
					voxel.NameID = out.AddString(name)
				}
			}
			voxel.Samples = append(voxel.Samples, exportSample(v))
			src.ReleaseVoxel(v)
		}
		out.Voxels = append(out.Voxels, voxel)
	}
	return out, nil
}

func exportSample(v *Voxel) formats.GVCSample {
	s := formats.GVCSample{Time: v.Time, Transform: [16]float32(v.Transform)}
	for _, ch := range v.Channels {
		id, dep := uint16(ch.ID), uint16(ch.DepID)
		switch {
		case ch.Strings != nil:
			s.Channels = append(s.Channels, formats.NewStringsChannel(id, ch.Strings))
		case ch.Vectors != nil:
			vecs := make([][3]float32, len(ch.Vectors))
			for i, vec := range ch.Vectors {
				vecs[i] = vec.Array()
			}
			s.Channels = append(s.Channels, formats.NewVectorChannel(id, dep, vecs, true))
		case isFaceChannel(ch.ID):
			s.Channels = append(s.Channels, formats.NewFaceChannel(id, dep, ch.Ints, true))
		default:
			s.Channels = append(s.Channels, formats.NewIntChannel(id, dep, ch.Ints, true))
		}
	}
	return s
}

func isFaceChannel(id ChannelID) bool {
	switch {
	case id == ChannelFaces, id == ChannelNormalFaces:
		return true
	default:
		return id >= ChannelSetFaceBase && id < ChannelSetFaceBase+MaxSets
	}
}
