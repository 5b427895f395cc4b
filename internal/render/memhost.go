package render

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Faultbox/geomcache/pkg/math"
)

// MemHost is an in-memory host renderer. It implements PluginManager, Scene
// and StringTable, and records what placements compile, so the reader can
// run outside a real renderer (CLI, tests).
type MemHost struct {
	mu      sync.Mutex
	plugins map[Plugin]struct{}
	byName  map[string][]Plugin
	nextID  int

	strMu   sync.RWMutex
	strings []string
	strIDs  map[string]StringID
}

// NewMemHost creates an empty host.
func NewMemHost() *MemHost {
	return &MemHost{
		plugins: make(map[Plugin]struct{}),
		byName:  make(map[string][]Plugin),
		strIDs:  make(map[string]StringID),
	}
}

// NewPlugin creates a plugin of the given type. Any type name is accepted;
// GeomStaticMesh plugins can additionally be instanced.
func (h *MemHost) NewPlugin(pluginType, name string) (Plugin, error) {
	if pluginType == "" {
		return nil, ErrUnknownPluginType
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	if name == "" {
		name = fmt.Sprintf("%s@%d", pluginType, h.nextID)
	}

	base := &MemPlugin{typ: pluginType, name: name, params: make(map[string]Param)}
	var p Plugin = base
	if pluginType == TypeGeomStaticMesh {
		p = &MemMesh{MemPlugin: base}
	}

	h.plugins[p] = struct{}{}
	h.byName[name] = append(h.byName[name], p)
	return p, nil
}

// DeletePlugin removes a plugin from the host.
func (h *MemHost) DeletePlugin(p Plugin) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.plugins[p]; !ok {
		return ErrPluginNotFound
	}
	delete(h.plugins, p)

	list := h.byName[p.Name()]
	for i, q := range list {
		if q == p {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(h.byName, p.Name())
	} else {
		h.byName[p.Name()] = list
	}
	return nil
}

// FindPlugin returns the oldest live plugin with the given name, or nil.
func (h *MemHost) FindPlugin(name string) Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()

	if list := h.byName[name]; len(list) > 0 {
		return list[0]
	}
	return nil
}

// Len returns the number of live plugins.
func (h *MemHost) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.plugins)
}

// PluginsOfType returns live plugins of the given type sorted by name.
func (h *MemHost) PluginsOfType(pluginType string) []Plugin {
	h.mu.Lock()
	var res []Plugin
	for p := range h.plugins {
		if p.Type() == pluginType {
			res = append(res, p)
		}
	}
	h.mu.Unlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}

// Intern returns the id of s, adding it to the table if needed.
func (h *MemHost) Intern(s string) StringID {
	if s == "" {
		return 0
	}

	h.strMu.RLock()
	id, ok := h.strIDs[s]
	h.strMu.RUnlock()
	if ok {
		return id
	}

	h.strMu.Lock()
	defer h.strMu.Unlock()
	if id, ok := h.strIDs[s]; ok {
		return id
	}
	h.strings = append(h.strings, s)
	id = StringID(len(h.strings))
	h.strIDs[s] = id
	return id
}

// Lookup resolves an interned id.
func (h *MemHost) Lookup(id StringID) (string, bool) {
	h.strMu.RLock()
	defer h.strMu.RUnlock()

	if id == 0 || int(id) > len(h.strings) {
		return "", false
	}
	return h.strings[id-1], true
}

// MemPlugin is a plugin held by MemHost.
type MemPlugin struct {
	mu     sync.RWMutex
	typ    string
	name   string
	params map[string]Param
}

func (p *MemPlugin) Name() string { return p.name }
func (p *MemPlugin) Type() string { return p.typ }

// SetParameter attaches or replaces a parameter.
func (p *MemPlugin) SetParameter(param Param) {
	p.mu.Lock()
	p.params[param.Name()] = param
	p.mu.Unlock()
}

// Parameter returns the named parameter or nil.
func (p *MemPlugin) Parameter(name string) Param {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.params[name]
}

// ParameterNames returns the attached parameter names, sorted.
func (p *MemPlugin) ParameterNames() []string {
	p.mu.RLock()
	names := make([]string, 0, len(p.params))
	for name := range p.params {
		names = append(names, name)
	}
	p.mu.RUnlock()

	sort.Strings(names)
	return names
}

// MemMesh is a GeomStaticMesh plugin that can be placed.
type MemMesh struct {
	*MemPlugin

	instMu    sync.Mutex
	instances map[*MemInstance]struct{}
}

// NewInstance creates a placement of the mesh.
func (m *MemMesh) NewInstance(opts InstanceOptions) StaticGeometry {
	inst := &MemInstance{mesh: m, Options: opts}

	m.instMu.Lock()
	if m.instances == nil {
		m.instances = make(map[*MemInstance]struct{})
	}
	m.instances[inst] = struct{}{}
	m.instMu.Unlock()
	return inst
}

// DeleteInstance removes a placement.
func (m *MemMesh) DeleteInstance(inst StaticGeometry) {
	mi, ok := inst.(*MemInstance)
	if !ok {
		return
	}
	m.instMu.Lock()
	delete(m.instances, mi)
	m.instMu.Unlock()
}

// Instances returns the number of live placements.
func (m *MemMesh) Instances() int {
	m.instMu.Lock()
	defer m.instMu.Unlock()
	return len(m.instances)
}

// MemInstance records the last compile of a placement.
type MemInstance struct {
	mesh    *MemMesh
	Options InstanceOptions

	Times      []float64
	Transforms []math.Mat4
	// VertexCounts holds the vertex count pulled from the mesh at each time.
	VertexCounts []int
	// Bounds holds the world-space bounding box at the first time.
	Bounds   [2]math.Vec3
	Compiled bool
}

// Mesh returns the placed mesh.
func (i *MemInstance) Mesh() *MemMesh { return i.mesh }

// CompileGeometry pulls the mesh vertices at every time, the way a renderer
// does when it builds its acceleration structures.
func (i *MemInstance) CompileGeometry(tms []math.Mat4, times []float64) error {
	if len(tms) != len(times) {
		return fmt.Errorf("compile %q: %d transforms for %d times", i.mesh.Name(), len(tms), len(times))
	}

	i.Times = append(i.Times[:0], times...)
	i.Transforms = append(i.Transforms[:0], tms...)
	i.VertexCounts = i.VertexCounts[:0]

	verts, _ := i.mesh.Parameter("vertices").(VectorListParam)
	for k, t := range times {
		if verts == nil {
			i.VertexCounts = append(i.VertexCounts, -1)
			continue
		}
		list := verts.VectorList(t)
		i.VertexCounts = append(i.VertexCounts, len(list))
		if k == 0 {
			i.Bounds = worldBounds(list, tms[0])
		}
	}
	i.Compiled = true
	return nil
}

// ClearGeometry drops compiled data.
func (i *MemInstance) ClearGeometry() {
	i.Times = nil
	i.Transforms = nil
	i.VertexCounts = nil
	i.Compiled = false
}

// UpdateMaterial replaces the material binding.
func (i *MemInstance) UpdateMaterial(material Plugin, renderID, objectID int) {
	i.Options.Material = material
	i.Options.RenderID = renderID
	i.Options.ObjectID = objectID
}

func worldBounds(verts []math.Vec3, tm math.Mat4) [2]math.Vec3 {
	if len(verts) == 0 {
		return [2]math.Vec3{}
	}
	lo := math.V3(tm.TransformPoint(verts[0].Array()))
	hi := lo
	for _, v := range verts[1:] {
		p := math.V3(tm.TransformPoint(v.Array()))
		lo = math.Vec3{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = math.Vec3{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return [2]math.Vec3{lo, hi}
}
