package anomaly

import "math"

// summary holds population statistics computed in one pass (Welford), so a
// constant series yields a standard deviation of exactly zero.
type summary struct {
	n    int
	mean float64
	m2   float64
}

func (s *summary) add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

func (s *summary) stdDev() float64 {
	if s.n == 0 || s.m2 <= 0 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n))
}

// zScore returns |x-mean|/sd and whether it exceeds threshold. Callers
// must not pass sd == 0.
func zScore(x, mean, sd, threshold float64) (float64, bool) {
	dev := math.Abs(x - mean)
	return dev / sd, dev > threshold*sd
}
