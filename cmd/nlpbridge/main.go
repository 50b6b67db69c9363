package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nlpbridge",
	Short: "Solve nonlinear programs through the sparse solver bridge",
	Long: `nlpbridge lays a constrained nonlinear problem out for a sparse NLP solver
library, runs it and prints the solution.

The bundled reference library runs an SLSQP engine in process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// solveCmd solves one of the built-in problems
var solveCmd = &cobra.Command{
	Use:   "solve [problem]",
	Short: "Solve a built-in problem",
	Long: `Solves a built-in problem with the selected solver.

Solvers:
  - nag-nlp-sparse: constrained problems, differentiable objective
  - nag-differentiable: one variable, differentiable objective
  - nag: one variable, function values only

Parameters may be given as a flat YAML mapping:
  max-iterations: 100
  nag.optimality-tolerance: 1.0e-8

Example:
  nlpbridge solve rosenbrock-disk --config params.yaml --metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runSolve,
}

// listCmd lists the built-in problems and solvers
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in problems and solvers",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	solveCmd.Flags().StringVarP(&solverName, "solver", "s", "nag-nlp-sparse", "Solver name")
	solveCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file of solver parameters")
	solveCmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "Print the solver metrics after solving")
	solveCmd.Flags().BoolVar(&checkGradient, "check-gradient", false, "Compare jacobians with finite differences")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
