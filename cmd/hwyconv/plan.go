package main

import (
	"github.com/spf13/cobra"

	"github.com/ajroetker/hwyconv/hwy/contrib/conv"
)

func newPlanCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan case...",
		Short: "Print the strategy and blocking New selects for each case",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := parseCases(args)
			if err != nil {
				return err
			}
			opts, err := g.options()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, tc := range cases {
				c, err := conv.New(tc.batch, tc.p, opts...)
				if err != nil {
					return err
				}
				printer.Fprintf(out, "%s\n", tc.name)
				printer.Fprintf(out, "  strategy:  %s\n", c.Desc())
				if c.Strategy() == conv.StrategyNhwcDirect {
					printer.Fprintf(out, "  blocking:  %s\n", c.AlgorithmParameters())
				}
				printer.Fprintf(out, "  output:    %dx%dx%d\n", tc.p.DstC, tc.p.DstH, tc.p.DstW)
				printer.Fprintf(out, "  weights:   %d (%s)\n", tc.p.WeightSize(), tc.p.WeightFormat())
				printer.Fprintf(out, "  scratch:   %d floats\n", c.ExternalBufferSize())
				printer.Fprintf(out, "  flop:      %d\n", c.Flop())
			}
			return nil
		},
	}
}
