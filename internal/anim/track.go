// Package anim provides time-keyed attribute tracks and the animated
// parameters that serve them to the host renderer.
//
// Attribute data is held between samples: a query returns the latest
// keyframe at or before the query time, never an interpolation.
package anim

import (
	"fmt"
	"slices"
)

// timeEpsilon absorbs floating point drift between computed sample times
// and the times the host queries with.
const timeEpsilon = 1e-12

// Keyframe is one time sample of a track.
type Keyframe[T any] struct {
	Time float64
	Data T
}

// Track is an ordered list of keyframes with strictly increasing times.
// A Track is built once, then read concurrently without locking.
type Track[T any] struct {
	keys []Keyframe[T]
}

// Reserve preallocates room for n keyframes and drops any existing ones.
func (tr *Track[T]) Reserve(n int) {
	clear(tr.keys)
	tr.keys = slices.Grow(tr.keys[:0], n)
}

// Add appends a keyframe. Times must be strictly increasing; a violation is
// a programming error and panics.
func (tr *Track[T]) Add(t float64, data T) {
	*tr.AddRef(t) = data
}

// AddRef appends a zero keyframe at time t and returns a pointer to its data
// so callers can fill it in place. The pointer is valid until the next Add.
func (tr *Track[T]) AddRef(t float64) *T {
	if n := len(tr.keys); n > 0 && !(t > tr.keys[n-1].Time) {
		panic(fmt.Sprintf("anim: keyframe time %v not after previous %v", t, tr.keys[n-1].Time))
	}
	tr.keys = append(tr.keys, Keyframe[T]{Time: t})
	return &tr.keys[len(tr.keys)-1].Data
}

// Len returns the number of keyframes.
func (tr *Track[T]) Len() int {
	return len(tr.keys)
}

// Index returns the index of the latest keyframe whose time is <= t, 0 when
// t precedes every keyframe, or -1 when the track is empty.
func (tr *Track[T]) Index(t float64) int {
	n := len(tr.keys)
	if n == 0 {
		return -1
	}
	// First keyframe strictly after t; the one before it holds.
	i, _ := slices.BinarySearchFunc(tr.keys, t, func(k Keyframe[T], t float64) int {
		if k.Time <= t+timeEpsilon {
			return -1
		}
		return 1
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// At returns the data held at time t. ok is false when the track is empty.
func (tr *Track[T]) At(t float64) (data T, ok bool) {
	i := tr.Index(t)
	if i < 0 {
		return data, false
	}
	return tr.keys[i].Data, true
}

// Keyframes returns the keyframes in time order. The slice must not be
// modified.
func (tr *Track[T]) Keyframes() []Keyframe[T] {
	return tr.keys
}

// Times returns a copy of the keyframe times.
func (tr *Track[T]) Times() []float64 {
	times := make([]float64, len(tr.keys))
	for i, k := range tr.keys {
		times[i] = k.Time
	}
	return times
}
