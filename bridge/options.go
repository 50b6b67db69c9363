package bridge

import (
	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/numdiff"
)

type config struct {
	logger      *zap.Logger
	metrics     *Metrics
	checkJac    bool
	checkTol    float64
	checkMethod numdiff.Method
}

// Option configures a solver.
type Option func(*config)

// WithLogger sets the logger of the solver. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records solves and callbacks into m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithGradientCheck compares every analytic jacobian evaluated during a sparse solve
// with a finite difference estimate and logs entries whose scaled error exceeds tol.
func WithGradientCheck(tol float64) Option {
	return func(c *config) {
		c.checkJac, c.checkTol = true, tol
	}
}

const defaultCheckTol = 1e-4

func newConfig(opts []Option) config {
	c := config{logger: zap.NewNop(), checkTol: defaultCheckTol, checkMethod: numdiff.Central}
	for _, o := range opts {
		o(&c)
	}
	return c
}
