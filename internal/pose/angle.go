package pose

import "math"

// Angle returns the angle in degrees at vertex b between rays b->a and b->c,
// in [0, 180]. A zero-length ray yields 0.
func Angle(a, b, c Point) float64 {
	v1x, v1y := a.X-b.X, a.Y-b.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y

	mag1 := math.Hypot(v1x, v1y)
	mag2 := math.Hypot(v2x, v2y)
	if mag1 == 0 || mag2 == 0 {
		return 0
	}

	cos := (v1x*v2x + v1y*v2y) / (mag1 * mag2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// JointAngle computes Angle over three joints of f in pixel space. ok is
// false when any joint is missing.
func JointAngle(f Frame, a, b, c Joint) (float64, bool) {
	pa, okA := f.Pixel(a)
	pb, okB := f.Pixel(b)
	pc, okC := f.Pixel(c)
	if !okA || !okB || !okC {
		return 0, false
	}
	return Angle(pa, pb, pc), true
}
