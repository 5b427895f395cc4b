package render

import (
	"fmt"

	"github.com/Faultbox/geomcache/pkg/math"
)

// ParamType identifies which typed accessor a host should use on a Param.
type ParamType int

const (
	ParamUnspecified ParamType = iota
	ParamBool
	ParamInt
	ParamFloat
	ParamVector
	ParamColor
	ParamString
	ParamPlugin
	ParamList
)

// String returns a human-readable parameter type name.
func (t ParamType) String() string {
	switch t {
	case ParamUnspecified:
		return "Unspecified"
	case ParamBool:
		return "Bool"
	case ParamInt:
		return "Int"
	case ParamFloat:
		return "Float"
	case ParamVector:
		return "Vector"
	case ParamColor:
		return "Color"
	case ParamString:
		return "String"
	case ParamPlugin:
		return "Plugin"
	case ParamList:
		return "List"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Param is a named value attached to a plugin. The host pulls data from it
// at arbitrary times through one of the typed accessor interfaces below;
// which one applies is decided by a type switch on the concrete value.
type Param interface {
	Name() string
	// Type returns the element type of the parameter.
	Type() ParamType
	// Count returns the number of list elements at time t, 1 for scalar
	// parameters, or -1 when no data exists.
	Count(t float64) int
}

// VectorListParam serves a list of 3D vectors.
type VectorListParam interface {
	Param
	VectorList(t float64) []math.Vec3
}

// IntListParam serves a list of integers.
type IntListParam interface {
	Param
	IntList(t float64) []int32
}

// StringListParam serves a list of strings.
type StringListParam interface {
	Param
	StringList(t float64) []string
}

// MapChannelsParam serves the list of UV/color sets of a mesh.
type MapChannelsParam interface {
	Param
	MapChannels(t float64) []MapChannel
}

// BoolParam serves a single boolean.
type BoolParam interface {
	Param
	Bool(t float64) bool
}

// FloatParam serves a single float.
type FloatParam interface {
	Param
	Float(t float64) float32
}

// StringParam serves a single string.
type StringParam interface {
	Param
	String(t float64) string
}

// ColorParam serves a single RGB color.
type ColorParam interface {
	Param
	Color(t float64) [3]float32
}

// PluginParam references another plugin.
type PluginParam interface {
	Param
	Plugin(t float64) Plugin
}

// MapChannel is one UV or color set of a mesh.
type MapChannel struct {
	Index    int         // Channel index (set id relative to the base channel id)
	Vertices []math.Vec3 // Texture or color vertices
	Faces    []int32     // Flat triangle indices into Vertices
}

// staticParam is a time-invariant parameter.
type staticParam struct {
	name string
	typ  ParamType
}

func (p *staticParam) Name() string      { return p.name }
func (p *staticParam) Type() ParamType   { return p.typ }
func (p *staticParam) Count(float64) int { return 1 }

type boolParam struct {
	staticParam
	value bool
}

func (p *boolParam) Bool(float64) bool { return p.value }

// NewBool returns a static boolean parameter.
func NewBool(name string, value bool) BoolParam {
	return &boolParam{staticParam{name, ParamBool}, value}
}

type floatParam struct {
	staticParam
	value float32
}

func (p *floatParam) Float(float64) float32 { return p.value }

// NewFloat returns a static float parameter.
func NewFloat(name string, value float32) FloatParam {
	return &floatParam{staticParam{name, ParamFloat}, value}
}

type stringParam struct {
	staticParam
	value string
}

func (p *stringParam) String(float64) string { return p.value }

// NewString returns a static string parameter.
func NewString(name, value string) StringParam {
	return &stringParam{staticParam{name, ParamString}, value}
}

type colorParam struct {
	staticParam
	value [3]float32
}

func (p *colorParam) Color(float64) [3]float32 { return p.value }

// NewColor returns a static color parameter.
func NewColor(name string, r, g, b float32) ColorParam {
	return &colorParam{staticParam{name, ParamColor}, [3]float32{r, g, b}}
}

type pluginParam struct {
	staticParam
	value Plugin
}

func (p *pluginParam) Plugin(float64) Plugin { return p.value }

// NewPluginRef returns a static reference to another plugin.
func NewPluginRef(name string, value Plugin) PluginParam {
	return &pluginParam{staticParam{name, ParamPlugin}, value}
}
