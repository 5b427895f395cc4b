package anim

import (
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/math"
)

// List is an animated list parameter: a named Track of slices.
type List[E any] struct {
	Track[[]E]
	name string
	typ  render.ParamType
}

func (l *List[E]) Name() string           { return l.name }
func (l *List[E]) Type() render.ParamType { return l.typ }

// Count returns the list length held at time t, or -1 without keyframes.
func (l *List[E]) Count(t float64) int {
	data, ok := l.At(t)
	if !ok {
		return -1
	}
	return len(data)
}

func (l *List[E]) list(t float64) []E {
	data, _ := l.At(t)
	return data
}

// VectorList is an animated list of vectors (vertices, normals, velocities).
type VectorList struct{ List[math.Vec3] }

// NewVectorList creates an empty vector list parameter.
func NewVectorList(name string) *VectorList {
	return &VectorList{List[math.Vec3]{name: name, typ: render.ParamVector}}
}

// VectorList returns the vectors held at time t.
func (p *VectorList) VectorList(t float64) []math.Vec3 { return p.list(t) }

// IntList is an animated list of integers (face indices).
type IntList struct{ List[int32] }

// NewIntList creates an empty integer list parameter.
func NewIntList(name string) *IntList {
	return &IntList{List[int32]{name: name, typ: render.ParamInt}}
}

// IntList returns the integers held at time t.
func (p *IntList) IntList(t float64) []int32 { return p.list(t) }

// StringList is an animated list of strings (map channel names).
type StringList struct{ List[string] }

// NewStringList creates an empty string list parameter.
func NewStringList(name string) *StringList {
	return &StringList{List[string]{name: name, typ: render.ParamString}}
}

// StringList returns the strings held at time t.
func (p *StringList) StringList(t float64) []string { return p.list(t) }

// MapChannels is an animated list of UV/color sets.
type MapChannels struct{ List[render.MapChannel] }

// NewMapChannels creates an empty map channel parameter.
func NewMapChannels(name string) *MapChannels {
	return &MapChannels{List[render.MapChannel]{name: name, typ: render.ParamList}}
}

// MapChannels returns the sets held at time t.
func (p *MapChannels) MapChannels(t float64) []render.MapChannel { return p.list(t) }

var (
	_ render.VectorListParam  = (*VectorList)(nil)
	_ render.IntListParam     = (*IntList)(nil)
	_ render.StringListParam  = (*StringList)(nil)
	_ render.MapChannelsParam = (*MapChannels)(nil)
)
