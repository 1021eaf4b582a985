package main

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ollama/gguf/dequant"
	"github.com/ollama/gguf/gguf"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <a.gguf> <b.gguf>",
		Short: "Print the mean relative difference of tensors present in both files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.OutOrStdout(), args[0], args[1])
		},
	}
	return cmd
}

type tensorDiff struct {
	name    string
	percent float64
	err     error
}

func runCompare(w io.Writer, pathA, pathB string) error {
	fa, err := gguf.Open(pathA)
	if err != nil {
		return err
	}
	defer fa.Close()
	fb, err := gguf.Open(pathB)
	if err != nil {
		return err
	}
	defer fb.Close()

	tensorsA, err := allTensors(fa)
	if err != nil {
		return err
	}
	tensorsB, err := allTensors(fb)
	if err != nil {
		return err
	}

	byName := make(map[string]gguf.TensorInfo, len(tensorsB))
	for _, t := range tensorsB {
		byName[t.Name] = t
	}

	var shared []gguf.TensorInfo
	for _, t := range tensorsA {
		if _, ok := byName[t.Name]; ok {
			shared = append(shared, t)
		}
	}

	results := make([]tensorDiff, len(shared))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ta := range shared {
		i, ta := i, ta
		g.Go(func() error {
			tb := byName[ta.Name]
			wa, err := dequant.TensorToFloat32(fa, ta)
			if err != nil {
				results[i] = tensorDiff{name: ta.Name, err: err}
				return nil
			}
			wb, err := dequant.TensorToFloat32(fb, tb)
			if err != nil {
				results[i] = tensorDiff{name: ta.Name, err: err}
				return nil
			}
			results[i] = tensorDiff{name: ta.Name, percent: meanRelativeDifference(wa, wb)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "%s: %v\n", r.name, r.err)
			continue
		}
		fmt.Fprintf(w, "%s: %.4f%%\n", r.name, r.percent)
	}
	return nil
}

// meanRelativeDifference is the mean absolute per-element difference
// divided by the mean per-element magnitude, as a percentage.
func meanRelativeDifference(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var sumAbsDiff, sumMag float64
	for i := 0; i < n; i++ {
		sumAbsDiff += math.Abs(float64(a[i]) - float64(b[i]))
		sumMag += (math.Abs(float64(a[i])) + math.Abs(float64(b[i]))) / 2
	}

	meanMag := sumMag / float64(n)
	if meanMag == 0 {
		return 0
	}
	return (sumAbsDiff / float64(n)) / meanMag * 100
}
