package meshfile

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/pkg/formats"
	"github.com/Faultbox/geomcache/pkg/math"
)

// GVC decodes a voxel cache file. Channel payloads are decompressed on the
// thread pool, one task per channel.
type GVC struct {
	base
	path string
	file *formats.GVC
	log  *zap.Logger
}

// NewGVC returns a decoder for the cache at path.
func NewGVC(path string) *GVC {
	return newGVC(path, nil)
}

func newGVC(path string, l Loader) *GVC {
	return &GVC{base: newBase(l), path: path, log: logger.Named("meshfile")}
}

// Init reads and parses the file.
func (g *GVC) Init() error {
	data, err := g.loader.Read(g.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", g.path, err)
	}
	f, err := formats.ParseGVC(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", g.path, err)
	}
	g.file = f
	g.log.Debug("opened voxel cache",
		zap.String("path", g.path),
		zap.Int("voxels", len(f.Voxels)),
		zap.Float32("fps", f.FPS))
	return nil
}

// Close drops the parsed file.
func (g *GVC) Close() error {
	g.file = nil
	return nil
}

// NumVoxels returns the number of voxels, or 0 before Init.
func (g *GVC) NumVoxels() int {
	if g.file == nil {
		return 0
	}
	return len(g.file.Voxels)
}

// VoxelFlags returns the flags of voxel i without decoding it.
func (g *GVC) VoxelFlags(i int) Flags {
	if i < 0 || i >= g.NumVoxels() {
		return 0
	}
	return Flags(g.file.Voxels[i].Flags)
}

// fileTime converts a host frame time to the file's frame units.
func (g *GVC) fileTime(t float64) float64 {
	if g.file.FPS <= 0 {
		return t
	}
	return t * float64(g.file.FPS) / float64(g.framesPerSecond())
}

// Voxel decodes voxel i at the given time index. Vertex positions between
// two stored samples are interpolated when both samples have the same
// vertex count; all other channels and the transform hold the earlier
// sample.
func (g *GVC) Voxel(i, timeIndex int) (*Voxel, error) {
	if g.file == nil {
		return nil, ErrNotInitialized
	}
	if i < 0 || i >= len(g.file.Voxels) {
		return nil, fmt.Errorf("%w: %d", ErrVoxelIndex, i)
	}
	t, err := g.sampleTime(timeIndex)
	if err != nil {
		return nil, err
	}

	src := &g.file.Voxels[i]
	v := &Voxel{
		Flags:     Flags(src.Flags),
		Time:      t,
		Transform: math.Identity(),
	}
	if name, ok := g.file.String(src.NameID); ok {
		v.NameID = g.intern(name)
	}
	if len(src.Samples) == 0 {
		g.open++
		return v, nil
	}

	lo, hi, k := bracket(src.Samples, g.fileTime(t))
	sample := &src.Samples[lo]
	v.Transform = math.Mat4(sample.Transform)
	v.Channels = make([]Channel, len(sample.Channels))

	var wg sync.WaitGroup
	errs := make([]error, len(sample.Channels)+1)
	for c := range sample.Channels {
		wg.Add(1)
		g.pool.Go(func() {
			defer wg.Done()
			v.Channels[c], errs[c] = decodeChannel(&sample.Channels[c])
		})
	}

	var next []math.Vec3
	if hi != lo {
		if ch := src.Samples[hi].Channel(uint16(ChannelVertices)); ch != nil {
			wg.Add(1)
			g.pool.Go(func() {
				defer wg.Done()
				var decoded Channel
				decoded, errs[len(errs)-1] = decodeChannel(ch)
				next = decoded.Vectors
			})
		}
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, fmt.Errorf("decoding voxel %d: %w", i, err)
	}

	if verts := v.Channel(ChannelVertices); verts != nil && next != nil {
		if len(next) == len(verts.Vectors) {
			for j := range verts.Vectors {
				verts.Vectors[j] = verts.Vectors[j].Lerp(next[j], k)
			}
		}
	}

	g.open++
	return v, nil
}

// bracket finds the stored samples around t and the weight of hi.
// Times outside the stored range clamp to the nearest sample.
func bracket(samples []formats.GVCSample, t float64) (lo, hi int, k float32) {
	last := len(samples) - 1
	if last == 0 || t <= samples[0].Time {
		return 0, 0, 0
	}
	if t >= samples[last].Time {
		return last, last, 0
	}
	for j := 0; j < last; j++ {
		t0, t1 := samples[j].Time, samples[j+1].Time
		if t < t1 {
			return j, j + 1, float32((t - t0) / (t1 - t0))
		}
	}
	return last, last, 0
}

func decodeChannel(ch *formats.GVCChannel) (Channel, error) {
	out := Channel{ID: ChannelID(ch.ID), DepID: ChannelID(ch.DepID)}

	var err error
	switch ch.Kind {
	case formats.GVCKindVector:
		var vecs [][3]float32
		vecs, err = ch.DecodeVectors()
		out.Vectors = make([]math.Vec3, len(vecs))
		for i, v := range vecs {
			out.Vectors[i] = math.V3(v)
		}
	case formats.GVCKindFace:
		out.Ints, err = ch.DecodeFaces()
	case formats.GVCKindInt:
		out.Ints, err = ch.DecodeInts()
	case formats.GVCKindStrings:
		out.Strings, err = ch.DecodeStrings()
	}
	return out, err
}
