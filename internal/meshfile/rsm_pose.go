package meshfile

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/geomcache/pkg/formats"
	"github.com/Faultbox/geomcache/pkg/math"
)

// keySpan finds the keyframes around ms. frame(i) returns the frame of key
// i; keys are sorted by frame. Past the last key, lo == hi.
func keySpan(n int, frame func(i int) int32, ms float32) (lo, hi int, t float32) {
	for i := 0; i < n; i++ {
		if float32(frame(i)) > ms {
			hi = i
			break
		}
		lo, hi = i, i
	}
	if lo == hi {
		return lo, hi, 0
	}
	f0, f1 := frame(lo), frame(hi)
	if f1 != f0 {
		t = (ms - float32(f0)) / float32(f1-f0)
	}
	return lo, hi, t
}

// rotationAt interpolates rotation keyframes with slerp.
func rotationAt(keys []formats.RSMRotKeyframe, ms float32) math.Quat {
	switch len(keys) {
	case 0:
		return math.QuatIdentity()
	case 1:
		return math.QuatFromArray(keys[0].Quaternion)
	}
	lo, hi, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, ms)
	q0 := math.QuatFromArray(keys[lo].Quaternion)
	if lo == hi {
		return q0
	}
	return q0.Slerp(math.QuatFromArray(keys[hi].Quaternion), t)
}

// scaleAt interpolates scale keyframes linearly.
func scaleAt(keys []formats.RSMScaleKeyframe, ms float32) math.Vec3 {
	if len(keys) == 0 {
		return math.Vec3{X: 1, Y: 1, Z: 1}
	}
	lo, hi, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, ms)
	return math.V3(keys[lo].Scale).Lerp(math.V3(keys[hi].Scale), t)
}

// positionAt interpolates position keyframes, falling back to the node's
// static position.
func positionAt(node *formats.RSMNode, ms float32) math.Vec3 {
	keys := node.PosKeys
	if len(keys) == 0 {
		return math.V3(node.Position)
	}
	lo, hi, t := keySpan(len(keys), func(i int) int32 { return keys[i].Frame }, ms)
	return math.V3(keys[lo].Position).Lerp(math.V3(keys[hi].Position), t)
}

// nodeMatrix returns the world matrix applied to a node's vertices at ms:
// the inherited hierarchy matrix followed by the node's own pivot offset
// and 3x3 matrix, which children do not inherit.
func nodeMatrix(model *formats.RSM, node *formats.RSMNode, ms float32) math.Mat4 {
	m := hierarchyMatrix(model, node, ms, map[string]bool{})
	m = m.Mul(math.Translate(node.Offset[0], node.Offset[1], node.Offset[2]))
	return m.Mul(math.FromMat3x3(node.Matrix))
}

// hierarchyMatrix returns parent * Position * Rotation * Scale for node.
func hierarchyMatrix(model *formats.RSM, node *formats.RSMNode, ms float32, visited map[string]bool) math.Mat4 {
	if visited[node.Name] {
		return math.Identity()
	}
	visited[node.Name] = true

	pos := positionAt(node, ms)
	local := math.Translate(pos.X, pos.Y, pos.Z)

	// Keyframes replace the static axis-angle rotation.
	if len(node.RotKeys) > 0 {
		local = local.Mul(rotationAt(node.RotKeys, ms).ToMat4())
	} else if node.RotAngle != 0 {
		axis := math.V3(node.RotAxis)
		if axis.Length() > 1e-6 {
			local = local.Mul(math.RotateAxis(axis.Normalize().Array(), node.RotAngle))
		}
	}

	local = local.Mul(math.Scale(node.Scale[0], node.Scale[1], node.Scale[2]))
	if len(node.ScaleKeys) > 0 {
		s := scaleAt(node.ScaleKeys, ms)
		local = local.Mul(math.Scale(s.X, s.Y, s.Z))
	}

	if node.Parent != "" && node.Parent != node.Name {
		if parent := model.GetNodeByName(node.Parent); parent != nil {
			return hierarchyMatrix(model, parent, ms, visited).Mul(local)
		}
	}
	return local
}

// animTime maps a frame time to milliseconds within the model's loop.
func animTime(frame float64, fps float32, length int32) float32 {
	ms := float32(frame) / fps * 1000
	if length > 0 {
		ms = math32.Mod(ms, float32(length))
		if ms < 0 {
			ms += float32(length)
		}
	}
	return ms
}
