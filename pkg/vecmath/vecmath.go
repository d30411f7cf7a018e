// Package vecmath holds the float32 vector helpers shared by quote retrieval
// and speaker matching. Accumulation is done in float64.
package vecmath

import "math"

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
//
// ok is false when the pair is not comparable: empty vectors, different
// lengths, a zero norm, or a non-finite result. Callers must skip such
// pairs instead of treating them as similarity 0.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, false
	}
	return max(-1, min(1, sim)), true
}

// Confidence maps a cosine similarity from [-1, 1] to [0, 1].
func Confidence(cos float64) float64 {
	return max(0, min(1, (cos+1)/2))
}
