package main

import (
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajroetker/hwyconv/hwy/contrib/conv"
	"github.com/ajroetker/hwyconv/hwy/contrib/workerpool"
)

type benchFlags struct {
	duration time.Duration
	workers  int
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	f := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench [case...]",
		Short: "Time Forward for each case and report GFLOPS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := parseCases(args)
			if err != nil {
				return err
			}
			opts, err := g.options()
			if err != nil {
				return err
			}
			var pool *workerpool.Pool
			if f.workers > 1 {
				pool = workerpool.New(f.workers)
				defer pool.Close()
			}
			out := cmd.OutOrStdout()
			for _, tc := range cases {
				c, err := conv.New(tc.batch, tc.p, opts...)
				if err != nil {
					return err
				}
				perCall := benchmark(c, tc, pool, f.duration)
				gflops := float64(c.Flop()) / perCall.Seconds() / 1e9
				printer.Fprintf(out, "%-44s %-24s %10.3f ms %10.2f GFLOPS\n",
					tc.name, c.Desc(), float64(perCall.Microseconds())/1e3, gflops)
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&f.duration, "time", "t", time.Second, "minimum measuring time per case")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 1, "run ForwardParallel on a pool of this many workers (0 for all CPUs)")
	cmd.PreRun = func(*cobra.Command, []string) {
		if f.workers == 0 {
			f.workers = runtime.NumCPU()
		}
	}
	return cmd
}

// benchmark runs Forward repeatedly for at least d and returns the mean
// time per call.
func benchmark(c *conv.Convolution, tc testCase, pool *workerpool.Pool, d time.Duration) time.Duration {
	r := rand.New(rand.NewPCG(1, 2))
	random := func(n int) []float32 {
		data := make([]float32, n)
		for i := range data {
			data[i] = r.Float32()*2 - 1
		}
		return data
	}
	c.SetParams(random(tc.p.WeightSize()), random(tc.p.DstC), tc.activationParams())
	src := random(tc.p.SrcSize(tc.batch))
	dst := make([]float32, tc.p.DstSize(tc.batch))
	buf := make([]float32, c.ExternalBufferSize())

	c.ForwardParallel(pool, src, buf, dst)
	calls := 0
	start := time.Now()
	for time.Since(start) < d {
		c.ForwardParallel(pool, src, buf, dst)
		calls++
	}
	return time.Since(start) / time.Duration(calls)
}
