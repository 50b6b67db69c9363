package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/curioloop/nlpbridge/bridge"
	"github.com/curioloop/nlpbridge/problem"
	"github.com/curioloop/nlpbridge/solverlib"
)

var (
	solverName    string
	configPath    string
	dumpMetrics   bool
	checkGradient bool
)

func runSolve(cmd *cobra.Command, args []string) error {
	b, ok := builtins[args[0]]
	if !ok {
		return fmt.Errorf("unknown problem %q, want one of %s", args[0], strings.Join(builtinNames(), ", "))
	}
	pb, err := b.build()
	if err != nil {
		return fmt.Errorf("build %s: %w", args[0], err)
	}

	reg := prometheus.NewRegistry()
	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithMetrics(bridge.NewMetrics(reg)),
	}
	if checkGradient {
		opts = append(opts, bridge.WithGradientCheck(1e-4))
	}
	s, err := bridge.New(solverName, pb, solverlib.NewReference(logger), opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		err = s.Parameters().LoadYAML(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	s.SetIterationCallback(func(_ *problem.Problem, st *problem.SolverState) {
		logger.Debug("evaluation", zap.Int("n", st.Evaluations), zap.Float64s("x", st.X), zap.Float64("cost", st.Cost))
	})

	if err := s.Solve(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	res, err := s.Result()
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", args[0], err)
		var serr *problem.SolverError
		if errors.As(err, &serr) && serr.LastState != nil {
			printResult(out, serr.LastState)
		}
	} else {
		printResult(out, res)
	}

	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	logger.Info("solve finished",
		zap.String("problem", args[0]),
		zap.String("solver", solverName),
		zap.Float64("callbacks", counterValue(mfs, "nlpbridge_callbacks_total")))
	if dumpMetrics {
		return writeMetrics(out, mfs)
	}
	return nil
}

func printResult(w io.Writer, res *problem.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "x\t%v\n", res.X)
	fmt.Fprintf(tw, "value\t%.8g\n", res.Value)
	if len(res.Constraints) > 0 {
		fmt.Fprintf(tw, "constraints\t%v\n", res.Constraints)
		fmt.Fprintf(tw, "multipliers\t%v\n", res.Lambda)
	}
	tw.Flush()
}

// writeMetrics prints the nlpbridge families in the text exposition format.
func writeMetrics(w io.Writer, mfs []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "nlpbridge_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROBLEM\tDESCRIPTION")
	for _, name := range builtinNames() {
		fmt.Fprintf(tw, "%s\t%s\n", name, builtins[name].about)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SOLVER\t")
	for _, name := range bridge.Names() {
		fmt.Fprintf(tw, "%s\t\n", name)
	}
	return tw.Flush()
}

// counterValue sums the samples of the counter family name.
func counterValue(mfs []*dto.MetricFamily, name string) float64 {
	var sum float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
