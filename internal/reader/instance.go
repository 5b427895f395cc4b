package reader

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/geomcache/internal/geom"
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/internal/xform"
	"github.com/Faultbox/geomcache/pkg/math"
)

// Instance is the reader placed in one scene node. It owns one renderer
// placement per mesh instance of the current frame, created on the first
// compile. Compiles on different nodes may run concurrently; each only
// writes its own placements.
type Instance struct {
	reader     *Reader
	opts       render.InstanceOptions
	placements []placement
	generation int
}

type placement struct {
	mesh   *geom.MeshInstance
	source render.StaticGeomSource
	geom   render.StaticGeometry
}

// NewInstance places the reader in a scene node.
func (r *Reader) NewInstance(opts render.InstanceOptions) render.StaticGeometry {
	return &Instance{reader: r, opts: opts}
}

// DeleteInstance removes a node placement and its renderer placements.
func (r *Reader) DeleteInstance(inst render.StaticGeometry) {
	if n, ok := inst.(*Instance); ok && n != nil {
		n.ClearGeometry()
	}
}

// Placements returns the renderer placements of the node.
func (n *Instance) Placements() []render.StaticGeometry {
	out := make([]render.StaticGeometry, 0, len(n.placements))
	for _, p := range n.placements {
		out = append(out, p.geom)
	}
	return out
}

// CompileGeometry compiles every mesh instance of the frame with the node
// transforms: each placement gets its own local transforms composed with
// tms, at its own sample times.
func (n *Instance) CompileGeometry(tms []math.Mat4, times []float64) error {
	if n.generation != n.reader.generation {
		// Meshes of an earlier frame were deleted along with their
		// placements.
		n.placements = nil
		n.generation = n.reader.generation
	}
	if len(n.placements) == 0 {
		n.createPlacements()
	}

	var err error
	for _, p := range n.placements {
		out, outTimes, cerr := xform.Compose(&p.mesh.Transforms, tms, times)
		if cerr != nil {
			err = multierr.Append(err, fmt.Errorf("instance %q: %w", p.mesh.Name, cerr))
			continue
		}
		if cerr := p.geom.CompileGeometry(out, outTimes); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("instance %q: %w", p.mesh.Name, cerr))
		}
	}
	return err
}

// ClearGeometry clears and deletes the node's placements.
func (n *Instance) ClearGeometry() {
	stale := n.generation != n.reader.generation
	for _, p := range n.placements {
		if stale {
			continue
		}
		p.geom.ClearGeometry()
		p.source.DeleteInstance(p.geom)
	}
	n.placements = nil
}

// UpdateMaterial forwards a material change to every placement.
func (n *Instance) UpdateMaterial(material render.Plugin, renderID, objectID int) {
	n.opts.RenderID = renderID
	n.opts.ObjectID = objectID
	for _, p := range n.placements {
		p.geom.UpdateMaterial(material, renderID, objectID)
	}
}

func (n *Instance) createPlacements() {
	r := n.reader
	for _, mi := range r.instances {
		src, ok := mi.Source.Plugin.(render.StaticGeomSource)
		if !ok {
			continue
		}

		opts := n.opts
		opts.Material = r.materialFor(mi.Name)
		opts.Displacement, opts.DisplacementAmount, _ = r.rules.Displacement(mi.Name)
		opts.Subdivide = r.rules.SubdivisionEnabled(mi.Name)
		opts.BaseTM = math.Identity()

		n.placements = append(n.placements, placement{
			mesh:   mi,
			source: src,
			geom:   src.NewInstance(opts),
		})
	}
}
