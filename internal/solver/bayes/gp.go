package bayes

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// gp is a Gaussian process regressor over observed losses. The zero
// value is not usable; call fit before predict.
type gp struct {
	kernel   Kernel
	noiseVar float64
	logger   *zap.Logger
	buf      *fitScratch

	train [][]float64
	chol  *mat.Cholesky
	alpha *mat.VecDense
	yMean float64
}

func newGP(kernel Kernel, noiseVar float64) *gp {
	if noiseVar < 0 {
		noiseVar = 0
	}
	return &gp{kernel: kernel, noiseVar: noiseVar, logger: zap.NewNop()}
}

// fit conditions the process on the given observations. The kernel
// matrix gets a growing diagonal jitter until it factorizes; a matrix
// that never factorizes is reported as an error.
func (g *gp) fit(xs [][]float64, ys []float64) error {
	n := len(xs)
	if n == 0 {
		return fmt.Errorf("no training points")
	}
	if len(ys) != n {
		return fmt.Errorf("got %d inputs but %d observations", n, len(ys))
	}

	g.yMean = 0
	for _, y := range ys {
		g.yMean += y
	}
	g.yMean /= float64(n)

	base, K, centered := g.buffers(n)
	for i, y := range ys {
		centered.SetVec(i, y-g.yMean)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel.Eval(xs[i], xs[j])
			if i == j {
				v += g.noiseVar
			}
			base.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	factorized := false
	for jitter := 1e-10; jitter <= 1e-2; jitter *= 10 {
		K.CopySym(base)
		for i := 0; i < n; i++ {
			K.SetSym(i, i, K.At(i, i)+jitter)
		}
		if chol.Factorize(K) {
			factorized = true
			break
		}
		g.logger.Debug("Cholesky factorization failed, increasing jitter",
			zap.Int("samples", n),
			zap.Float64("jitter", jitter))
	}
	if !factorized {
		return fmt.Errorf("kernel matrix is not positive definite for %d points", n)
	}

	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, centered); err != nil {
		return fmt.Errorf("solving for dual coefficients: %w", err)
	}

	g.train = xs
	g.chol = &chol
	g.alpha = alpha
	return nil
}

// buffers hands out the fit work matrices, from the shared scratch
// when one is attached. The Cholesky factor and the dual coefficients
// own their storage, so reusing these across fits is safe.
func (g *gp) buffers(n int) (base, work *mat.SymDense, vec *mat.VecDense) {
	if g.buf != nil {
		return g.buf.buffers(n)
	}
	return mat.NewSymDense(n, nil), mat.NewSymDense(n, nil), mat.NewVecDense(n, nil)
}

// predict returns the posterior mean and variance at x.
func (g *gp) predict(x []float64) (float64, float64) {
	n := len(g.train)
	kvec := mat.NewVecDense(n, nil)
	for i, xi := range g.train {
		kvec.SetVec(i, g.kernel.Eval(xi, x))
	}

	mean := g.yMean + mat.Dot(kvec, g.alpha)

	v := mat.NewVecDense(n, nil)
	variance := g.kernel.Eval(x, x) + g.noiseVar
	if err := g.chol.SolveVecTo(v, kvec); err == nil {
		variance -= mat.Dot(kvec, v)
	}
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// observations returns how many points the process is conditioned on.
func (g *gp) observations() int { return len(g.train) }
