package scan

// Scan is one sweep of range readings, indexed by beam.
type Scan []float64

// FromInts converts integer readings as stored in the robot log.
func FromInts(readings []int) Scan {
	s := make(Scan, len(readings))
	for i, r := range readings {
		s[i] = float64(r)
	}
	return s
}

// Derivative holds one edge value per beam of a Scan.
type Derivative []float64

// ComputeDerivative returns the centred difference (s[i+1]-s[i-1])/2 for
// every interior beam. Beams whose neighbours are at or below minDist get 0,
// as do both endpoints. The result always has the same length as s.
func ComputeDerivative(s Scan, minDist float64) Derivative {
	jumps := make(Derivative, len(s))
	for i := 1; i < len(s)-1; i++ {
		l := s[i-1]
		r := s[i+1]
		if l > minDist && r > minDist {
			jumps[i] = (r - l) / 2.0
		}
	}
	return jumps
}
