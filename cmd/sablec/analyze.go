package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sable-vm/sable/fixture"
	"github.com/sable-vm/sable/ssa"
)

var printCmd = &cobra.Command{
	Use:   "print <fixture.yaml>",
	Short: "print the loaded SSA module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, fns, err := loadFunctions(args[0])
		if err != nil {
			return err
		}
		for _, f := range fns {
			fmt.Print(m.Builder.Format(f.Fn))
		}
		return nil
	},
}

var post bool

var domCmd = &cobra.Command{
	Use:   "dom <fixture.yaml>",
	Short: "print the (post-)dominator tree of each function",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, fns, err := loadFunctions(args[0])
		if err != nil {
			return err
		}
		for _, f := range fns {
			var t *ssa.DominatorTree
			if post {
				t, err = ssa.NewPostDominatorTree(m.Builder, f.Fn.Body())
			} else {
				t, err = ssa.NewDominatorTree(m.Builder, f.Fn.Body())
			}
			if err != nil {
				return err
			}
			fmt.Printf("function %s\n", f.Fn.Name())
			for _, blk := range f.Fn.Body().Blocks() {
				if !t.IsReachable(blk) {
					fmt.Printf("\t%s: unreachable\n", f.BlockName(blk))
					continue
				}
				idom := "none"
				if d := t.ImmediateDominator(blk); d != nil {
					idom = f.BlockName(d)
				}
				fmt.Printf("\t%s: idom=%s level=%d\n", f.BlockName(blk), idom, t.Level(blk))
			}
			if err := t.Verify(ssa.VerificationLevelFull); err != nil {
				return err
			}
		}
		return nil
	},
}

var frontierCmd = &cobra.Command{
	Use:   "frontier <fixture.yaml>",
	Short: "print the dominance frontier of each block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, fns, err := loadFunctions(args[0])
		if err != nil {
			return err
		}
		for _, f := range fns {
			t, err := ssa.NewDominatorTree(m.Builder, f.Fn.Body())
			if err != nil {
				return err
			}
			df := ssa.NewDominanceFrontier(t)
			fmt.Printf("function %s\n", f.Fn.Name())
			for _, blk := range f.Fn.Body().Blocks() {
				frontier := df.Of(blk)
				if len(frontier) == 0 {
					continue
				}
				fmt.Printf("\t%s:", f.BlockName(blk))
				for _, fb := range frontier {
					fmt.Printf(" %s", f.BlockName(fb))
				}
				fmt.Println()
			}
		}
		return nil
	},
}

var deadcodeCmd = &cobra.Command{
	Use:   "deadcode <fixture.yaml>",
	Short: "print which blocks and edges are reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, fns, err := loadFunctions(args[0])
		if err != nil {
			return err
		}
		s, _, err := runAnalyses(m, nil)
		if err != nil {
			return err
		}
		for _, f := range fns {
			fmt.Printf("function %s\n", f.Fn.Name())
			for _, blk := range f.Fn.Body().Blocks() {
				fmt.Printf("\t%s: %s\n", f.BlockName(blk), liveOrDead(s.IsBlockExecutable(blk)))
				for _, succ := range blk.Succs() {
					fmt.Printf("\t\t-> %s: %s\n",
						f.BlockName(succ), liveOrDead(s.IsEdgeExecutable(blk, succ)))
				}
			}
		}
		return nil
	},
}

var livenessCmd = &cobra.Command{
	Use:   "liveness <fixture.yaml>",
	Short: "print the next-use sets at block boundaries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, fns, err := loadFunctions(args[0])
		if err != nil {
			return err
		}
		s, las, err := runAnalyses(m, fns)
		if err != nil {
			return err
		}
		for i, f := range fns {
			la := las[i]
			fmt.Printf("function %s\n", f.Fn.Name())
			for _, blk := range f.Fn.Body().Blocks() {
				if !s.IsBlockExecutable(blk) {
					fmt.Printf("\t%s: dead\n", f.BlockName(blk))
					continue
				}
				fmt.Printf("\t%s: in=%s out=%s\n", f.BlockName(blk),
					formatUses(la.NextUsesAtStartOf(blk)),
					formatUses(la.NextUsesAtEndOf(blk)))
			}
		}
		return nil
	},
}

func init() {
	domCmd.Flags().BoolVar(&post, "post", false, "compute post-dominance instead")
}

// runAnalyses runs dead-code analysis over the whole module, plus a liveness
// instance per requested function, all in one solver so liveness sees the
// executability facts.
func runAnalyses(m *fixture.Module, fns []*fixture.Function) (*ssa.Solver, []*ssa.LivenessAnalysis, error) {
	s := ssa.NewSolver(m.Builder, initLogger())
	s.Load(ssa.NewDeadCodeAnalysis(m.Builder.Module(), ssa.NewFoldedConstants(m.Builder)))
	las := make([]*ssa.LivenessAnalysis, len(fns))
	for i, f := range fns {
		la, err := ssa.NewLivenessAnalysis(f.Fn)
		if err != nil {
			return nil, nil, err
		}
		s.Load(la)
		las[i] = la
	}
	if err := s.Run(); err != nil {
		return nil, nil, err
	}
	return s, las, nil
}

func liveOrDead(live bool) string {
	if live {
		return "live"
	}
	return "dead"
}

func formatUses(set *ssa.NextUseSet) string {
	if set == nil {
		return "{}"
	}
	return set.String()
}
