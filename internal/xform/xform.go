// Package xform composes instance transforms for time-sampled compiles.
package xform

import (
	"errors"

	"github.com/Faultbox/geomcache/internal/anim"
	"github.com/Faultbox/geomcache/pkg/math"
)

// Errors returned by Compose.
var (
	ErrNoGlobalSamples = errors.New("no global transform samples")
	ErrSampleMismatch  = errors.New("global transform and time counts differ")
)

// InterpolateGlobal returns the global transform at time t. Times outside
// the sampled range clamp to the boundary sample; inside it, the bracketing
// pair is blended componentwise. tms must not be empty.
func InterpolateGlobal(tms []math.Mat4, times []float64, t float64) math.Mat4 {
	n := len(tms)
	if n == 1 || t <= times[0] {
		return tms[0]
	}
	if t >= times[n-1] {
		return tms[n-1]
	}

	j := 0
	for j < n-2 && times[j+1] <= t {
		j++
	}
	k := float32((t - times[j]) / (times[j+1] - times[j]))
	return tms[j].Lerp(tms[j+1], k)
}

// Compose combines a local transform track with global transform samples.
// The result has one transform per local keyframe, at the local times:
// global(t_i) * local_i.
func Compose(local *anim.Track[math.Mat4], tms []math.Mat4, times []float64) ([]math.Mat4, []float64, error) {
	if len(tms) == 0 {
		return nil, nil, ErrNoGlobalSamples
	}
	if len(tms) != len(times) {
		return nil, nil, ErrSampleMismatch
	}

	keys := local.Keyframes()
	out := make([]math.Mat4, len(keys))
	outTimes := make([]float64, len(keys))
	for i, key := range keys {
		out[i] = InterpolateGlobal(tms, times, key.Time).Mul(key.Data)
		outTimes[i] = key.Time
	}
	return out, outTimes, nil
}
