package bayes

import "gonum.org/v1/gonum/mat"

// fitScratch recycles the factorization work buffers across surrogate
// fits. The training set grows by one point per iteration, so the
// buffers are kept at the largest size seen and sliced down to the
// working window.
type fitScratch struct {
	base *mat.SymDense
	work *mat.SymDense
	vec  *mat.VecDense
	size int
}

func (s *fitScratch) grow(n int) {
	if n <= s.size {
		return
	}
	c := 2 * s.size
	if c < n {
		c = n
	}
	s.base = mat.NewSymDense(c, nil)
	s.work = mat.NewSymDense(c, nil)
	s.vec = mat.NewVecDense(c, nil)
	s.size = c
}

// buffers returns views of the scratch buffers at size n. The caller
// overwrites every element, so views are not zeroed.
func (s *fitScratch) buffers(n int) (base, work *mat.SymDense, vec *mat.VecDense) {
	s.grow(n)
	base = s.base.SliceSym(0, n).(*mat.SymDense)
	work = s.work.SliceSym(0, n).(*mat.SymDense)
	vec = s.vec.SliceVec(0, n).(*mat.VecDense)
	return base, work, vec
}
