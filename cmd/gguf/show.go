package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/gguf/gguf"
)

func newShowCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "show <file.gguf>",
		Short: "Print a GGUF file's metadata and tensor list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.OutOrStdout(), args[0], verbose)
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "print full arrays instead of truncating to 30 elements")
	return cmd
}

func runShow(w io.Writer, path string, verbose bool) error {
	f, err := gguf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := f.Header()
	fmt.Fprintf(w, "%s (ver %d): %d key-value pairs, %d tensors\n", path, hdr.Version, hdr.MetadataKVCount, hdr.TensorCount)

	kvs, err := f.ReadAllKV()
	if err != nil {
		return err
	}

	maxItems := 30
	if verbose {
		maxItems = 0
	}
	for _, kv := range kvs {
		fmt.Fprintf(w, "%s: [%s] %s\n", kv.Key, kvTypeTag(kv.Value), kv.Value.Format(maxItems))
	}

	var totalWeights uint64
	var rows [][]string
	for {
		t, ok, err := f.NextTensor()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		totalWeights += t.NumWeights
		rows = append(rows, []string{
			t.Type.String(),
			t.Name,
			fmt.Sprintf("@%d,", t.AbsoluteOffset),
			fmt.Sprintf("%d weights,", t.NumWeights),
			fmt.Sprintf("%d bytes", t.NumBytes),
		})
	}

	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("  ")
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(w, "\n%.2fB parameters\n", float64(totalWeights)/1e9)
	return nil
}

// kvTypeTag names the bracketed type shown before a key's value: the
// value type's name, or "array[<element type>]" for arrays, mirroring how gguf-show.c prints
// gguf_get_value_type_name.
func kvTypeTag(v gguf.Value) string {
	if v.Type != gguf.TypeArray {
		return v.Type.Name()
	}
	return "array[" + v.ElemType.Name() + "]"
}
