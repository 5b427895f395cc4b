package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/geomcache/internal/config"
	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/internal/reader"
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/math"
)

// runFrames plays the host side of a render: one sequence, and for every
// frame a single scene node placed at the origin.
func runFrames(cfg *config.Config, host *render.MemHost, out io.Writer) error {
	mb := cfg.Render.MotionBlur
	seq := &render.SequenceData{
		Plugins:  host,
		Scene:    host,
		Strings:  host,
		Progress: logger.Progress("reader"),
		Threads:  threadPool(cfg.Decoder.Workers),
		MotionBlur: render.MotionBlur{
			On:             mb.On,
			GeomSamples:    mb.GeomSamples,
			Duration:       mb.Duration,
			IntervalCenter: mb.IntervalCenter,
		},
		FramesPerSecond: cfg.Render.FPS,
	}

	r := reader.New(reader.Options{
		File:              cfg.Reader.File,
		MtlDefsFile:       cfg.Reader.MtlDefsFile,
		RulesFile:         cfg.Reader.MtlAssignmentsFile,
		MotionBlurSamples: cfg.Reader.MotionBlurSamples,
	})
	if err := r.PreRenderBegin(seq); err != nil {
		return err
	}

	for frame := cfg.Render.FrameStart; frame <= cfg.Render.FrameEnd; frame++ {
		r.FrameBegin(render.FrameData{Frame: frame, Time: float64(frame)})

		node := r.NewInstance(render.InstanceOptions{PrimaryVisibility: true})
		err := node.CompileGeometry([]math.Mat4{math.Identity()}, []float64{float64(frame)})
		fmt.Fprintf(out, "frame %d: %d meshes\n", frame, len(r.MeshInstances()))
		if err != nil {
			logger.Warn("compile failed", zap.Int("frame", frame), zap.Error(err))
			fmt.Fprintf(out, "  compile: %v\n", err)
		}
		if inst, ok := node.(*reader.Instance); ok {
			for _, p := range inst.Placements() {
				printPlacement(out, p)
			}
		}

		r.DeleteInstance(node)
		r.FrameEnd()
	}

	return r.PostRenderEnd()
}

func printPlacement(out io.Writer, g render.StaticGeometry) {
	mi, ok := g.(*render.MemInstance)
	if !ok {
		return
	}
	mtl := "-"
	if mi.Options.Material != nil {
		mtl = mi.Options.Material.Name()
	}
	fmt.Fprintf(out, "  %-32s mtl=%-16s times=%s verts=%v\n",
		mi.Mesh().Name(), mtl, formatTimes(mi.Times), mi.VertexCounts)
}
