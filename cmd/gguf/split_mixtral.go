package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ollama/gguf/gguf"
)

const mixtralBlocks = 32

func newSplitMixtralCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split-mixtral <digits 0-7> <in.gguf> <out.gguf>",
		Short: "Keep one feed-forward expert per block, dropping the rest",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplitMixtral(cmd.OutOrStdout(), args[0], args[1], args[2])
		},
	}
	return cmd
}

func validateExpertDigits(digits string) error {
	if len(digits) == 0 || len(digits) > mixtralBlocks {
		return fmt.Errorf("expert digit string must be 1-%d characters", mixtralBlocks)
	}
	for _, c := range digits {
		if c < '0' || c > '7' {
			return fmt.Errorf("invalid expert digit %q: must be 0-7", c)
		}
	}
	return nil
}

// expertForBlock returns the expert id selected for block, repeating the
// last given digit for blocks past the end of digits.
func expertForBlock(digits string, block int) int {
	i := block
	if i >= len(digits) {
		i = len(digits) - 1
	}
	return int(digits[i] - '0')
}

// parseExpertTensor recognises names of the form
// blk.<block>.ffn_<kind>.<expert>.weight (for example ffn_gate, ffn_up,
// ffn_down).
func parseExpertTensor(name string) (block int, prefix string, expert int, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 5 || parts[0] != "blk" || parts[4] != "weight" || !strings.HasPrefix(parts[2], "ffn_") {
		return 0, "", 0, false
	}
	b, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", 0, false
	}
	e, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, "", 0, false
	}
	return b, parts[2], e, true
}

type keptTensor struct {
	src       gguf.TensorInfo
	outName   string
	relOffset uint64
}

func runSplitMixtral(w io.Writer, digits, inPath, outPath string) error {
	if err := validateExpertDigits(digits); err != nil {
		return err
	}

	in, err := gguf.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := gguf.Create(outPath, false)
	if err != nil {
		return err
	}
	defer out.Close()

	kvs, err := in.ReadAllKV()
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		if strings.Contains(kv.Key, ".expert_") {
			continue
		}
		if err := out.AppendKV(kv.Key, kv.Value.Type, kv.Value); err != nil {
			return err
		}
	}

	var kept []keptTensor
	for {
		t, ok, err := in.NextTensor()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		block, prefix, expert, isExpert := parseExpertTensor(t.Name)
		if !isExpert {
			kept = append(kept, keptTensor{src: t, outName: t.Name})
			continue
		}
		if block < 0 || block >= mixtralBlocks {
			continue
		}
		if expert != expertForBlock(digits, block) {
			continue
		}
		kept = append(kept, keptTensor{
			src:     t,
			outName: fmt.Sprintf("blk.%d.%s.weight", block, prefix),
		})
	}

	align := out.Alignment()
	var offset uint64
	for i := range kept {
		kept[i].relOffset = offset
		offset += kept[i].src.NumBytes
		offset += (align - offset%align) % align
	}

	for _, k := range kept {
		if err := out.AppendTensorInfo(k.outName, k.src.Shape, k.src.Type, k.relOffset); err != nil {
			return err
		}
	}
	for _, k := range kept {
		data, err := in.Bytes(k.src)
		if err != nil {
			return err
		}
		if err := out.AppendTensorData(data); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "%s: wrote %d tensors to %s\n", inPath, len(kept), outPath)
	return nil
}
