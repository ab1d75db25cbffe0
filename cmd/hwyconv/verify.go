package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/hwyconv/hwy/contrib/conv"
)

type verifyFlags struct {
	jobs      int
	tolerance float64
}

// result is the outcome of one verified case.
type result struct {
	desc   string
	maxErr float64
	index  int
	ok     bool
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	f := &verifyFlags{}
	cmd := &cobra.Command{
		Use:   "verify [case...]",
		Short: "Compare Forward against the reference convolution",
		Long: "Compare Forward against the reference convolution for each case, or for a\n" +
			"built-in set covering every strategy. Exits non-zero on any mismatch.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := parseCases(args)
			if err != nil {
				return err
			}
			opts, err := g.options()
			if err != nil {
				return err
			}
			results := make([]result, len(cases))
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.SetLimit(max(f.jobs, 1))
			for i, tc := range cases {
				eg.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					c, err := conv.New(tc.batch, tc.p, opts...)
					if err != nil {
						return err
					}
					results[i] = verifyCase(c, tc, uint64(i+1), f.tolerance)
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, res := range results {
				status := "ok"
				if !res.ok {
					status = printer.Sprintf("FAIL at %d", res.index)
					failed++
				}
				fmt.Fprintf(out, "%-44s %-28s max err %.3g  %s\n", cases[i].name, res.desc, res.maxErr, status)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d cases mismatch", failed, len(cases))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", runtime.NumCPU(), "cases verified concurrently")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 1e-4, "relative tolerance, scaled by max(1, |reference|)")
	return cmd
}

// verifyCase runs c and the reference on the same random data and reports
// the largest scaled difference.
func verifyCase(c *conv.Convolution, tc testCase, seed uint64, tolerance float64) result {
	r := rand.New(rand.NewPCG(seed, 7))
	random := func(n int) []float32 {
		data := make([]float32, n)
		for i := range data {
			data[i] = r.Float32()*2 - 1
		}
		return data
	}
	weight := random(tc.p.WeightSize())
	bias := random(tc.p.DstC)
	params := tc.activationParams()
	src := random(tc.p.SrcSize(tc.batch))

	c.SetParams(weight, bias, params)
	got := make([]float32, tc.p.DstSize(tc.batch))
	c.Forward(src, nil, got)
	want := make([]float32, len(got))
	conv.Reference(tc.batch, tc.p, weight, bias, params, src, want)

	res := result{desc: c.Desc(), ok: true}
	for i := range want {
		diff := math.Abs(float64(got[i]-want[i])) / max(1, math.Abs(float64(want[i])))
		if diff > res.maxErr || math.IsNaN(diff) {
			res.maxErr = diff
			res.index = i
		}
		if !(diff <= tolerance) {
			res.ok = false
		}
	}
	return res
}
