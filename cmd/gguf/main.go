// Command gguf inspects and produces GGUF files: show, inspect-tensor,
// compare, and split-mixtral.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gguf:", err)
		os.Exit(1)
	}
}
