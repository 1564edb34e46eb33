package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/electionmap/internal/probability"
)

type oddsFlags struct {
	a, b      float64
	moe       float64
	undecided float64
	k         float64
}

func newOddsCmd() *cobra.Command {
	var f oddsFlags
	cmd := &cobra.Command{
		Use:   "odds",
		Short: "Convert two poll shares into a win probability",
		Long: "Convert two poll shares into candidate A's lead and the probability that A " +
			"wins. With --k the lead is mapped through the probability curve normalization " +
			"instead of the poll's margin of error.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOdds(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().Float64Var(&f.a, "a", 0, "Candidate A poll share in percent")
	cmd.Flags().Float64Var(&f.b, "b", 0, "Candidate B poll share in percent")
	cmd.Flags().Float64Var(&f.moe, "moe", 3, "Poll margin of error at 95% confidence, in points")
	cmd.Flags().Float64Var(&f.undecided, "undecided", 0, "Undecided share in percent")
	cmd.Flags().Float64Var(&f.k, "k", 0, "Curve normalization; 0 uses the margin of error")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}

func printOdds(w io.Writer, f oddsFlags) error {
	spread, err := probability.PollSpread(f.a, f.b, f.undecided)
	if err != nil {
		return err
	}
	var p float64
	if f.k > 0 {
		p = probability.WinProbability(spread, f.k)
	} else if p, err = probability.PollWinProbability(f.a, f.b, f.moe, f.undecided); err != nil {
		return err
	}
	fmt.Fprintf(w, "Spread: %+.2f pts\n", spread)
	if f.k > 0 {
		fmt.Fprintf(w, "Normalization: %g\n", f.k)
	} else {
		fmt.Fprintf(w, "Standard error: %.2f\n", probability.StandardError(f.moe))
	}
	_, err = fmt.Fprintf(w, "P(A wins): %.4f\n", p)
	return err
}
