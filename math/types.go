// Package math provides the vector/quaternion/matrix/transform arithmetic
// shared by mesh building, skeleton correction, and coordinate conversion.
package math

// Vec2 represents a 2D vector.
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector.
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/** @brief a 4x4 matrix, typically used to represent object transformations. */
type Mat4 struct {
	/** @brief The matrix elements. */
	Data [16]float32
}

/**
 * @brief Represents the extents of a 3d object.
 */
type Extents3D struct {
	Min Vec3
	Max Vec3
}

/**
 * @brief Represents a single vertex in 3D space, before compression into
 * the on-disk StaticObject layout (see meshbuild).
 */
type Vertex3D struct {
	Position Vec3
	Normal   Vec3
	Texcoord Vec2
	Colour   Vec4
	Tangent  Vec4
}

/**
 * @brief Represents the transform of an object in the world. Transforms
 * can have a parent whose own transform is then taken into account.
 */
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
	/** @brief Set whenever position, rotation or scale change; local is stale until recomputed. */
	IsDirty bool
	Local   Mat4
	Parent  *Transform
}
