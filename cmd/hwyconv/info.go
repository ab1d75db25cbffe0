package main

import (
	"github.com/spf13/cobra"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/conv"
)

func newInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the detected SIMD capabilities and cache blocking defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caps, err := g.capabilities()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cache := conv.CacheSizesFor(caps.Level)
			printer.Fprintf(out, "detected:      %s (%s)\n", hwy.CurrentName(), hwy.CurrentCapabilities())
			printer.Fprintf(out, "native lanes:  float32 %d, float64 %d\n", hwy.MaxLanes[float32](), hwy.MaxLanes[float64]())
			printer.Fprintf(out, "target:        %s\n", caps)
			printer.Fprintf(out, "float32 lanes: %d (micro-block %d channels)\n", caps.Float32Lanes(), 2*caps.Float32Lanes())
			printer.Fprintf(out, "cache blocks:  L1 %d, L2 %d, L3 %d bytes\n", cache.L1, cache.L2, cache.L3)
			printer.Fprintf(out, "HWY_NO_SIMD=%t HWY_NO_AVX512=%t\n", hwy.NoSimdEnv(), hwy.NoAVX512Env())
			return nil
		},
	}
}
