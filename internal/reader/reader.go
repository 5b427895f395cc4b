// Package reader is the geometry source placed in the host scene. It loads
// a mesh file at the start of every frame, turns its objects into renderer
// meshes, and releases them all at frame end.
//
// Lifecycle, driven by the host:
//
//	PreRenderBegin -> (FrameBegin -> compile calls -> FrameEnd)* -> PostRenderEnd
package reader

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/geomcache/internal/assets"
	"github.com/Faultbox/geomcache/internal/geom"
	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/internal/matdefs"
	"github.com/Faultbox/geomcache/internal/meshfile"
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/internal/rules"
)

// ErrNoHost is returned when the sequence data has no plugin manager.
var ErrNoHost = errors.New("no plugin manager")

// Options are the reader's own parameters.
type Options struct {
	// File is the mesh file, a .gvc cache or an RSM model.
	File string
	// MtlDefsFile is an optional material definitions file.
	MtlDefsFile string
	// RulesFile is an optional material assignment rule file.
	RulesFile string
	// MotionBlurSamples overrides the host's geometry sample count when
	// greater than zero.
	MotionBlurSamples int
}

// Reader drives loading for one placed geometry source.
type Reader struct {
	opts Options
	seq  *render.SequenceData

	// render scoped: materials, textures and the default material.
	renderArena *render.Arena
	// frame scoped: one GeomStaticMesh per object.
	frameArena *render.Arena

	defaultMtl render.Plugin
	rules      *rules.Table
	mtlPrefix  string

	sources   []*geom.MeshSource
	instances []*geom.MeshInstance
	// generation counts unloads so node instances drop stale placements.
	generation int

	// store keeps archives open from the first frame to PostRenderEnd.
	store    *assets.Store
	open     func(path string) (meshfile.MeshFile, error)
	progress render.Progress
	log      *zap.Logger
}

// New creates a reader with the given options.
func New(opts Options) *Reader {
	r := &Reader{
		opts:  opts,
		store: assets.NewStore(),
		log:   logger.Named("reader"),
	}
	r.open = func(path string) (meshfile.MeshFile, error) {
		return meshfile.OpenWith(path, r.store)
	}
	return r
}

// Options returns the reader's parameters.
func (r *Reader) Options() Options { return r.opts }

// PreRenderBegin loads the material definitions and rule files and creates
// the default material. Missing or broken files are reported through the
// host's progress channel and rendering continues without them.
func (r *Reader) PreRenderBegin(seq *render.SequenceData) error {
	if seq == nil || seq.Plugins == nil {
		return ErrNoHost
	}
	r.seq = seq
	r.progress = seq.Progress
	if r.progress == nil {
		r.progress = logger.Progress("reader")
	}
	r.renderArena = render.NewArena(seq.Plugins)
	r.frameArena = render.NewArena(seq.Plugins)

	r.mtlPrefix = ""
	if r.opts.MtlDefsFile != "" {
		prefix, err := matdefs.Load(r.opts.MtlDefsFile, r.renderArena, seq.Scene, r.progress)
		if err != nil {
			r.progress.Warnf("Failed to read material definitions file %q: %v", r.opts.MtlDefsFile, err)
		}
		r.mtlPrefix = prefix
	}

	r.rules = nil
	if r.opts.RulesFile != "" {
		table, err := rules.LoadFile(r.opts.RulesFile, seq.Scene, r.mtlPrefix, r.progress)
		if err != nil {
			r.progress.Warnf("Failed to read XML material assignments file %q: %v", r.opts.RulesFile, err)
		} else {
			r.rules = table
		}
	}

	mtl, err := createDefaultMaterial(r.renderArena)
	if err != nil {
		r.progress.Errorf("Cannot create default material: %v", err)
	}
	r.defaultMtl = mtl

	r.log.Debug("pre render",
		zap.String("mtl_prefix", r.mtlPrefix),
		zap.Int("rules", r.rules.Len()),
		zap.Int("render_plugins", r.renderArena.Len()))
	return nil
}

// PostRenderEnd deletes every plugin created since PreRenderBegin.
func (r *Reader) PostRenderEnd() error {
	if r.seq == nil {
		return nil
	}
	err := r.unloadGeometry()
	err = multierr.Append(err, r.renderArena.Release())
	err = multierr.Append(err, r.store.Close())

	r.defaultMtl = nil
	r.rules = nil
	r.mtlPrefix = ""
	r.seq = nil
	return err
}

// FrameBegin loads the geometry of the frame.
func (r *Reader) FrameBegin(frame render.FrameData) {
	if r.seq == nil {
		return
	}
	if len(r.sources) > 0 {
		r.FrameEnd()
	}
	r.loadGeometry(float64(frame.Frame))
}

// FrameEnd releases the geometry of the frame.
func (r *Reader) FrameEnd() {
	if err := r.unloadGeometry(); err != nil {
		r.progress.Warnf("Releasing frame geometry: %v", err)
	}
}

// Sources returns the mesh sources of the current frame.
func (r *Reader) Sources() []*geom.MeshSource { return r.sources }

// MeshInstances returns the mesh instances of the current frame.
func (r *Reader) MeshInstances() []*geom.MeshInstance { return r.instances }

// DefaultMaterial returns the fallback material, nil outside a render.
func (r *Reader) DefaultMaterial() render.Plugin { return r.defaultMtl }

// MaterialPrefix returns the prefix material names are resolved with.
func (r *Reader) MaterialPrefix() string { return r.mtlPrefix }

// Rules returns the loaded rule table, nil when none was loaded.
func (r *Reader) Rules() *rules.Table { return r.rules }

// sampleParams derives decoder parameters from the host motion blur
// settings and the per-object override.
func (r *Reader) sampleParams() meshfile.Params {
	mb := r.seq.MotionBlur
	samples := mb.GeomSamples
	if r.opts.MotionBlurSamples > 0 {
		samples = r.opts.MotionBlurSamples
	}
	return meshfile.Params{
		MotionBlurOn:   mb.On,
		TimeIndices:    samples,
		Duration:       mb.Duration,
		IntervalCenter: mb.IntervalCenter,
	}
}

func (r *Reader) loadGeometry(frame float64) {
	path := r.opts.File
	file, err := r.open(path)
	if err != nil {
		r.progress.Errorf("Cannot open file %q: %v", path, err)
		return
	}

	fps := r.seq.FramesPerSecond
	if fps <= 0 {
		fps = meshfile.DefaultFramesPerSecond
	}
	params := r.sampleParams()
	sampling := geom.NewSampling(params, frame)

	file.SetStringTable(r.seq.Strings)
	file.SetThreadPool(r.seq.Threads)
	file.SetUseFullNames(true)
	file.SetFramesPerSecond(fps)
	file.SetParams(sampling.Params(params))

	if err := file.Init(); err != nil {
		r.progress.Errorf("Cannot initialize file %q: %v", path, err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			r.log.Warn("closing mesh file", zap.String("file", path), zap.Error(err))
		}
	}()
	file.SetCurrentFrame(frame)

	builder := geom.NewBuilder(file, r.seq.Strings, r.frameArena, sampling, r.seq.MotionBlur.On)
	builder.SetSetNames(previewSetNames(file))

	skipped := 0
	for i := 0; i < file.NumVoxels(); i++ {
		flags := file.VoxelFlags(i)
		if flags.Has(meshfile.FlagPreview) || !flags.Has(meshfile.FlagGeometry) || flags.Has(meshfile.FlagInstance) {
			continue
		}

		src, inst, err := builder.Build(i, true)
		if err != nil {
			r.progress.Warnf("Skipping voxel %d of %q: %v", i, path, err)
			skipped++
			continue
		}
		r.sources = append(r.sources, src)
		r.instances = append(r.instances, inst)
	}

	r.log.Debug("loaded geometry",
		zap.String("file", path),
		zap.Float64("frame", frame),
		zap.Int("voxels", file.NumVoxels()),
		zap.Int("meshes", len(r.sources)),
		zap.Int("skipped", skipped),
		zap.Int("samples", sampling.N))
}

func (r *Reader) unloadGeometry() error {
	r.generation++
	clear(r.instances)
	r.instances = r.instances[:0]
	clear(r.sources)
	r.sources = r.sources[:0]

	if r.frameArena == nil {
		return nil
	}
	n := r.frameArena.Len()
	if err := r.frameArena.Release(); err != nil {
		return fmt.Errorf("releasing %d meshes: %w", n, err)
	}
	return nil
}

// previewSetNames reads the UV and color set names from the preview voxel.
func previewSetNames(file meshfile.MeshFile) geom.SetNames {
	var names geom.SetNames
	for i := 0; i < file.NumVoxels(); i++ {
		if !file.VoxelFlags(i).Has(meshfile.FlagPreview) {
			continue
		}
		v, err := file.Voxel(i, 0)
		if err != nil {
			return names
		}
		if ch := v.Channel(meshfile.ChannelUVSetNames); ch != nil {
			names.UV = ch.Strings
		}
		if ch := v.Channel(meshfile.ChannelColorSetNames); ch != nil {
			names.Color = ch.Strings
		}
		file.ReleaseVoxel(v)
		break
	}
	return names
}

// materialFor returns the material for an object name: the first matching
// rule's material, or the default material.
func (r *Reader) materialFor(name string) render.Plugin {
	if mtl := r.rules.Material(name); mtl != nil {
		return mtl
	}
	return r.defaultMtl
}
