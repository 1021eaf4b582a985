package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ollama/gguf/dequant"
	"github.com/ollama/gguf/gguf"
)

func newInspectTensorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect-tensor <file.gguf> <name> [count]",
		Short: "Dequantize and print a tensor's weights",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := -1
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid count %q: %w", args[2], err)
				}
				count = n
			}
			return runInspectTensor(cmd.OutOrStdout(), args[0], args[1], count)
		},
	}
	return cmd
}

func runInspectTensor(w io.Writer, path, name string, count int) error {
	f, err := gguf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := findTensor(f, name)
	if err != nil {
		return err
	}

	weights, err := dequant.TensorToFloat32(f, info)
	if err != nil {
		return err
	}

	if count < 0 || count > len(weights) {
		count = len(weights)
	}
	for i := 0; i < count; i++ {
		fmt.Fprintf(w, "%12.6f", weights[i])
		if (i+1)%4 == 0 || i == count-1 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, " ")
		}
	}
	return nil
}

// findTensor scans from the top of the file for a tensor named name.
func findTensor(f *gguf.File, name string) (gguf.TensorInfo, error) {
	if err := f.Rewind(); err != nil {
		return gguf.TensorInfo{}, err
	}
	if err := f.SkipKV(); err != nil {
		return gguf.TensorInfo{}, err
	}
	for {
		t, ok, err := f.NextTensor()
		if err != nil {
			return gguf.TensorInfo{}, err
		}
		if !ok {
			break
		}
		if t.Name == name {
			return t, nil
		}
	}
	return gguf.TensorInfo{}, &gguf.Error{Kind: gguf.ErrNotFound, Tensor: name}
}

// allTensors scans from the top of the file and collects every tensor
// descriptor.
func allTensors(f *gguf.File) ([]gguf.TensorInfo, error) {
	if err := f.Rewind(); err != nil {
		return nil, err
	}
	if err := f.SkipKV(); err != nil {
		return nil, err
	}
	var out []gguf.TensorInfo
	for {
		t, ok, err := f.NextTensor()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
