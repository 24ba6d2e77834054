// sablec is a debugging front door to the SSA analyses: it loads a module
// from a YAML fixture and prints what the dominance and dataflow passes
// conclude about it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sable-vm/sable/fixture"
)

var (
	verbose  bool
	function string
)

var rootCmd = &cobra.Command{
	Use:           "sablec",
	Short:         "inspect SSA analyses over a YAML CFG fixture",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log fixpoint steps")
	rootCmd.PersistentFlags().StringVarP(&function, "function", "f", "", "restrict to one function (default: all)")

	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(domCmd)
	rootCmd.AddCommand(frontierCmd)
	rootCmd.AddCommand(deadcodeCmd)
	rootCmd.AddCommand(livenessCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sablec:", err)
		os.Exit(1)
	}
}

// initLogger returns the logger the analyses trace into. Quiet runs get a
// nop logger so the output is only the report itself.
func initLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("initializing logger: %v", err))
	}
	return logger
}

// loadFunctions loads the fixture at path and returns the functions selected
// by the --function flag.
func loadFunctions(path string) (*fixture.Module, []*fixture.Function, error) {
	m, err := fixture.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if function == "" {
		return m, m.Functions, nil
	}
	for _, f := range m.Functions {
		if f.Fn.Name() == function {
			return m, []*fixture.Function{f}, nil
		}
	}
	return nil, nil, fmt.Errorf("no function named %s in %s", function, path)
}
