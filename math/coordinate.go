package math

// CorrectTransform adjusts a foreign-space local transform into the
// engine's {Right, -Up, Forward} axis convention (SPEC_FULL.md §4.6).
// Rotation is permuted as q' = (qx, -qz, qy, qw); translation and scale
// follow the same Y/Z swap-and-negate.
func CorrectTransform(t Transform) Transform {
	return Transform{
		Position: correctVec3(t.Position),
		Rotation: correctQuat(t.Rotation),
		Scale:    correctVec3(t.Scale),
	}
}

// CorrectTransformInverse undoes CorrectTransform, used by the Scene
// Exporter (SPEC_FULL.md §4.10) to map an engine transform back to the
// foreign axis convention. Vectors map back as (x, y, z) -> (x, z, -y) and
// rotations as q -> (qx, qz, -qy, qw).
func CorrectTransformInverse(t Transform) Transform {
	p, r, s := t.Position, t.Rotation, t.Scale
	return Transform{
		Position: Vec3{X: p.X, Y: p.Z, Z: -p.Y},
		Rotation: Quaternion{X: r.X, Y: r.Z, Z: -r.Y, W: r.W},
		Scale:    Vec3{X: s.X, Y: s.Z, Z: -s.Y},
	}
}

func correctVec3(v Vec3) Vec3 {
	return Vec3{X: v.X, Y: -v.Z, Z: v.Y}
}

func correctQuat(q Quaternion) Quaternion {
	return Quaternion{X: q.X, Y: -q.Z, Z: q.Y, W: q.W}
}

// CorrectRootRotation applies the +90 degree rotation around X that the
// Skeleton Builder adds to the DFS-root joint (SPEC_FULL.md §4.8) on top
// of the axis correction above.
func CorrectRootRotation(q Quaternion) Quaternion {
	rot90X := NewQuatFromAxisAngle(Vec3{X: 1, Y: 0, Z: 0}, DegToRad(90), true)
	return rot90X.Mul(correctQuat(q))
}
