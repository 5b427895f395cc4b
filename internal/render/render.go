// Package render defines the contract between the geometry reader and the
// host renderer: plugins with pull-based parameters, the plugin manager and
// live scene, a shared string table, the progress channel, and the static
// geometry interfaces used at draw time.
package render

import (
	"errors"

	"github.com/Faultbox/geomcache/pkg/math"
)

// Host errors.
var (
	ErrUnknownPluginType = errors.New("unknown plugin type")
	ErrPluginNotFound    = errors.New("plugin not found")
)

// Plugin types created by the reader.
const (
	TypeGeomStaticMesh = "GeomStaticMesh"
	TypeBRDFDiffuse    = "BRDFDiffuse"
	TypeMtlSingleBRDF  = "MtlSingleBRDF"
)

// Plugin is an opaque renderer object that carries named parameters.
type Plugin interface {
	Name() string
	Type() string
	// SetParameter attaches p, replacing any parameter with the same name.
	SetParameter(p Param)
	// Parameter returns the named parameter or nil.
	Parameter(name string) Param
}

// PluginManager creates and deletes plugins by handle.
type PluginManager interface {
	NewPlugin(pluginType, name string) (Plugin, error)
	DeletePlugin(p Plugin) error
}

// Scene is the live plugin scene used for name lookups.
type Scene interface {
	FindPlugin(name string) Plugin
}

// StringID identifies an interned string. Zero means no string.
type StringID uint32

// StringTable interns strings shared between the decoder and the host.
type StringTable interface {
	Intern(s string) StringID
	Lookup(id StringID) (string, bool)
}

// Progress is the host's progress and error channel.
// *zap.SugaredLogger satisfies it.
type Progress interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// InstanceOptions carries the per-placement bindings for a mesh instance.
type InstanceOptions struct {
	Material           Plugin
	Displacement       Plugin
	DisplacementAmount float32
	Subdivide          bool
	RenderID           int
	ObjectID           int
	UserAttrs          string
	PrimaryVisibility  bool
	BaseTM             math.Mat4
}

// StaticGeomSource is implemented by plugins that can be placed in the
// scene, such as GeomStaticMesh.
type StaticGeomSource interface {
	NewInstance(opts InstanceOptions) StaticGeometry
	DeleteInstance(inst StaticGeometry)
}

// StaticGeometry is one placement of a geometry source.
type StaticGeometry interface {
	// CompileGeometry prepares the placement for the given time-sampled
	// transforms. len(tms) == len(times).
	CompileGeometry(tms []math.Mat4, times []float64) error
	ClearGeometry()
	UpdateMaterial(material Plugin, renderID, objectID int)
}

// MotionBlur holds the host's global motion blur settings.
type MotionBlur struct {
	On             bool
	GeomSamples    int
	Duration       float64
	IntervalCenter float64
}

// SequenceData is the per-render context handed to scene modifiers.
type SequenceData struct {
	Plugins    PluginManager
	Scene      Scene
	Strings    StringTable
	Progress   Progress
	Threads    ThreadPool
	MotionBlur MotionBlur
	// FramesPerSecond is zero when the host has no units information.
	FramesPerSecond float32
}

// FrameData describes the frame being rendered.
type FrameData struct {
	Frame int
	Time  float64
}
