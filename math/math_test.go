package math

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVec3Normalize(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	n := v.Normalize()
	require.InDelta(t, 1.0, n.Length(), 1e-5)
}

func TestQuatIdentityToMat4(t *testing.T) {
	q := NewQuatIdentity()
	m := q.ToMat4()
	identity := NewMat4Identity()
	for i := range m.Data {
		require.InDelta(t, identity.Data[i], m.Data[i], 1e-5)
	}
}

func TestMat4TranslationMulScale(t *testing.T) {
	tr := NewMat4Translation(Vec3{X: 1, Y: 2, Z: 3})
	sc := NewMat4Scale(Vec3{X: 2, Y: 2, Z: 2})
	combined := tr.Mul(sc)

	p := Vec3{X: 1, Y: 1, Z: 1}.Transform(combined)
	require.InDelta(t, 3.0, p.X, 1e-5)
	require.InDelta(t, 4.0, p.Y, 1e-5)
	require.InDelta(t, 5.0, p.Z, 1e-5)
}

func TestCoordinateCorrectionRoundTrip(t *testing.T) {
	original := Transform{
		Position: Vec3{X: 1, Y: 2, Z: 3},
		Rotation: NewQuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, DegToRad(45), true),
		Scale:    Vec3{X: 1, Y: 1, Z: 1},
	}
	corrected := CorrectTransform(original)
	back := CorrectTransformInverse(corrected)

	require.True(t, back.Position.Compare(original.Position, 1e-4))
	require.True(t, Vec4(back.Rotation).Compare(Vec4(original.Rotation), 1e-4))
}

func TestSlerpEndpoints(t *testing.T) {
	a := NewQuatIdentity()
	b := NewQuatFromAxisAngle(Vec3{X: 0, Y: 0, Z: 1}, DegToRad(90), true)

	start := a.Slerp(b, 0)
	end := a.Slerp(b, 1)

	require.True(t, Vec4(start).Compare(Vec4(a), 1e-4))
	require.True(t, Vec4(end).Compare(Vec4(b), 1e-4))
}
