package xform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/geomcache/internal/anim"
	"github.com/Faultbox/geomcache/pkg/math"
)

func TestInterpolateGlobal(t *testing.T) {
	tms := []math.Mat4{math.Identity(), math.Translate(10, 0, 0)}
	times := []float64{0, 1}

	tests := []struct {
		name string
		t    float64
		want math.Mat4
	}{
		{"before first", -1, tms[0]},
		{"at first", 0, tms[0]},
		{"midpoint", 0.5, math.Translate(5, 0, 0)},
		{"quarter", 0.25, math.Translate(2.5, 0, 0)},
		{"at last", 1, tms[1]},
		{"after last", 3, tms[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolateGlobal(tms, times, tt.t)
			assert.True(t, got.ApproxEqual(tt.want, 1e-5), "got %v", got)
		})
	}
}

func TestInterpolateGlobal_ManySamples(t *testing.T) {
	tms := []math.Mat4{math.Translate(0, 0, 0), math.Translate(2, 0, 0), math.Translate(2, 4, 0)}
	times := []float64{0, 1, 3}

	got := InterpolateGlobal(tms, times, 2)
	assert.InDelta(t, 2, got.Translation().X, 1e-6)
	assert.InDelta(t, 2, got.Translation().Y, 1e-6)

	got = InterpolateGlobal(tms, times, 1)
	assert.Equal(t, tms[1], got, "sample time hits the pair it starts")
}

func TestInterpolateGlobal_SingleSample(t *testing.T) {
	tm := math.Translate(1, 2, 3)
	assert.Equal(t, tm, InterpolateGlobal([]math.Mat4{tm}, []float64{5}, -100))
	assert.Equal(t, tm, InterpolateGlobal([]math.Mat4{tm}, []float64{5}, 100))
}

func TestCompose(t *testing.T) {
	var local anim.Track[math.Mat4]
	local.Add(0, math.Scale(2, 2, 2))
	local.Add(0.5, math.Translate(0, 1, 0))
	local.Add(1, math.Identity())

	tms := []math.Mat4{math.Identity(), math.Translate(10, 0, 0)}
	out, times, err := Compose(&local, tms, []float64{0, 1})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, 1}, times)
	require.Len(t, out, 3)
	assert.True(t, out[0].ApproxEqual(math.Scale(2, 2, 2), 1e-6))

	// Global is applied after local.
	p := out[1].TransformPoint([3]float32{0, 0, 0})
	assert.InDelta(t, 5, p[0], 1e-5)
	assert.InDelta(t, 1, p[1], 1e-5)

	assert.True(t, out[2].ApproxEqual(math.Translate(10, 0, 0), 1e-6))
}

func TestCompose_SingleLocalSample(t *testing.T) {
	var local anim.Track[math.Mat4]
	local.Add(0.5, math.Translate(0, 0, 1))

	out, times, err := Compose(&local, []math.Mat4{math.Identity(), math.Translate(10, 0, 0)}, []float64{0, 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{0.5}, times)
	assert.True(t, out[0].ApproxEqual(math.Translate(5, 0, 1), 1e-5))
}

func TestCompose_Errors(t *testing.T) {
	var local anim.Track[math.Mat4]
	local.Add(0, math.Identity())

	_, _, err := Compose(&local, nil, nil)
	assert.ErrorIs(t, err, ErrNoGlobalSamples)

	_, _, err = Compose(&local, []math.Mat4{math.Identity()}, []float64{0, 1})
	assert.ErrorIs(t, err, ErrSampleMismatch)

	out, times, err := Compose(&anim.Track[math.Mat4]{}, []math.Mat4{math.Identity()}, []float64{0})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, times)
}
