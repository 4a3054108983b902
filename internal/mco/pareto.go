package mco

// Dominates reports whether score vector a dominates b: at least as
// good everywhere and strictly better somewhere, on the minimized
// scale. Vectors of different lengths never dominate each other.
func Dominates(a, b []float64) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	strict := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			strict = true
		}
	}
	return strict
}

// Archive keeps the non-dominated evaluations seen so far, in
// insertion order.
type Archive struct {
	members []Evaluation
}

// NewArchive returns an empty archive.
func NewArchive() *Archive {
	return &Archive{}
}

// Add offers an evaluation to the archive. It reports whether the
// evaluation was kept; members it dominates are dropped.
func (ar *Archive) Add(e Evaluation) bool {
	for _, m := range ar.members {
		if Dominates(m.Score, e.Score) {
			return false
		}
	}

	kept := ar.members[:0]
	for _, m := range ar.members {
		if !Dominates(e.Score, m.Score) {
			kept = append(kept, m)
		}
	}
	ar.members = append(kept, e)
	return true
}

// Members returns the current front in insertion order.
func (ar *Archive) Members() []Evaluation {
	return append([]Evaluation(nil), ar.members...)
}

// Len returns the current front size.
func (ar *Archive) Len() int { return len(ar.members) }
