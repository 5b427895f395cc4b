package anim

import (
	"testing"

	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/math"
	"github.com/stretchr/testify/assert"
)

func TestVectorListParam(t *testing.T) {
	p := NewVectorList("vertices")
	assert.Equal(t, "vertices", p.Name())
	assert.Equal(t, render.ParamVector, p.Type())
	assert.Equal(t, -1, p.Count(0))
	assert.Nil(t, p.VectorList(0))

	p.Reserve(2)
	p.Add(0, []math.Vec3{{X: 1}})
	p.Add(0.5, []math.Vec3{{X: 2}, {X: 3}})

	assert.Equal(t, 1, p.Count(0.25))
	assert.Equal(t, 2, p.Count(0.5))
	assert.Equal(t, []math.Vec3{{X: 2}, {X: 3}}, p.VectorList(1))
}

func TestTypedParamsSatisfyHostInterfaces(t *testing.T) {
	params := []render.Param{
		NewVectorList("normals"),
		NewIntList("faces"),
		NewStringList("map_channels_names"),
		NewMapChannels("map_channels"),
	}

	for _, p := range params {
		switch v := p.(type) {
		case render.VectorListParam:
			assert.Equal(t, render.ParamVector, v.Type())
		case render.IntListParam:
			assert.Equal(t, render.ParamInt, v.Type())
		case render.StringListParam:
			assert.Equal(t, render.ParamString, v.Type())
		case render.MapChannelsParam:
			assert.Equal(t, render.ParamList, v.Type())
		default:
			t.Errorf("%s: no typed accessor", p.Name())
		}
	}
}

func TestMapChannelsParam(t *testing.T) {
	p := NewMapChannels("map_channels")
	p.Add(1, []render.MapChannel{
		{Index: 0, Vertices: []math.Vec3{{X: 0.5, Y: 0.5}}, Faces: []int32{0, 0, 0}},
		{Index: 1},
	})

	chans := p.MapChannels(1)
	assert.Len(t, chans, 2)
	assert.Equal(t, 2, p.Count(3))
	assert.Equal(t, []int32{0, 0, 0}, chans[0].Faces)

	names := NewStringList("map_channels_names")
	names.Add(1, []string{"map1", ""})
	assert.Equal(t, []string{"map1", ""}, names.StringList(0))

	faces := NewIntList("faces")
	faces.Add(1, []int32{0, 1, 2})
	assert.Equal(t, []int32{0, 1, 2}, faces.IntList(1))
}
