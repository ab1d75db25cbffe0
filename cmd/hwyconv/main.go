// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command hwyconv inspects, benchmarks and verifies the convolution engine.
//
// Usage:
//
//	hwyconv info
//	hwyconv plan 1:64x56x56-64x3x3-1-1-1-1-nhwc-relu
//	hwyconv bench --level avx2 1:64x56x56-64x3x3-1-1-1-1-nhwc-relu
//	hwyconv verify                     # built-in cases
//	hwyconv verify -j 4 2:17x9x9-33x3x3-2-1-1-1-nchw-prelu
//
// Cases are written N:CxHxW-DxKyxKx-S-D-P-G-layout-act: batch, source
// channels and size, output channels and kernel size, stride, dilation,
// symmetric padding, group count, tensor layout and activation. The batch
// prefix is optional.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ajroetker/hwyconv/hwy"
	"github.com/ajroetker/hwyconv/hwy/contrib/conv"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	verbose    bool
	level      string
	strategies []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "hwyconv",
		Short:         "Inspect, benchmark and verify vector-width-generic 2-D convolutions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(root.PersistentFlags())
	root.AddCommand(
		newInfoCmd(g),
		newPlanCmd(g),
		newBenchCmd(g),
		newVerifyCmd(g),
	)
	return root
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log strategy selection and progress")
	fs.StringVar(&g.level, "level", "", "simulate a dispatch level ("+strings.Join(levelNames(), ", ")+"); default is the detected one")
	fs.StringSliceVar(&g.strategies, "strategies", nil, "restrict the strategies New may select")
}

// logger returns a text logger on stderr, at Debug level with --verbose.
func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var levels = []hwy.DispatchLevel{
	hwy.DispatchScalar,
	hwy.DispatchSSE2,
	hwy.DispatchAVX2,
	hwy.DispatchAVX512,
	hwy.DispatchNEON,
}

func levelNames() []string {
	return lo.Map(levels, func(l hwy.DispatchLevel, _ int) string { return l.String() })
}

// capabilities returns the capabilities named by --level, or the detected
// ones.
func (g *globalFlags) capabilities() (hwy.Capabilities, error) {
	if g.level == "" {
		return hwy.CurrentCapabilities(), nil
	}
	level, ok := lo.Find(levels, func(l hwy.DispatchLevel) bool {
		return strings.EqualFold(l.String(), g.level)
	})
	if !ok {
		return hwy.Capabilities{}, fmt.Errorf("unknown level %q, want one of %s", g.level, strings.Join(levelNames(), ", "))
	}
	return hwy.CapabilitiesFor(level), nil
}

// options converts the global flags to engine options.
func (g *globalFlags) options() ([]conv.Option, error) {
	caps, err := g.capabilities()
	if err != nil {
		return nil, err
	}
	opts := []conv.Option{conv.WithCapabilities(caps), conv.WithLogger(g.logger())}
	if len(g.strategies) > 0 {
		strategies := make([]conv.Strategy, 0, len(g.strategies))
		for _, name := range lo.Uniq(g.strategies) {
			s, err := conv.ParseStrategy(name)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, s)
		}
		opts = append(opts, conv.WithStrategies(strategies...))
	}
	return opts, nil
}

// printer formats numbers with digit grouping.
var printer = message.NewPrinter(language.English)
