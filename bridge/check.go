package bridge

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/numdiff"
	"github.com/curioloop/nlpbridge/problem"
)

// checkJacobian logs the entries of jac that disagree with finite differences of fn at x.
// A mismatch never stops the solve.
func (s *NLPSparse) checkJacobian(name string, fn problem.Differentiable, x []float64, jac *problem.Sparse) {
	n, m := fn.InputSize(), fn.OutputSize()
	dense := jac.Dense().RawMatrix().Data
	bad, err := numdiff.CompareJacobian(n, m, slices.Clone(x), fn.Eval, dense, s.cfg.checkMethod, s.cfg.checkTol)
	if err != nil {
		s.cfg.logger.Warn("jacobian check skipped", zap.String("function", name), zap.Error(err))
		return
	}
	for _, b := range bad {
		s.cfg.logger.Warn("invalid jacobian entry",
			zap.String("function", name),
			zap.Int("row", b.Row),
			zap.Int("col", b.Col),
			zap.Float64("analytic", b.Analytic),
			zap.Float64("approx", b.Approx),
			zap.Float64("error", b.Error))
	}
}

var checkMethods = map[string]numdiff.Method{
	"forward": numdiff.Forward,
	"central": numdiff.Central,
}

func checkMethod(name string) (numdiff.Method, error) {
	m, ok := checkMethods[name]
	if !ok {
		return 0, fmt.Errorf("unknown finite difference method %q, want forward or central", name)
	}
	return m, nil
}
