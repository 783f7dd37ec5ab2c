package main

import (
	"fmt"
	"os"

	"github.com/Alekzandar/vibereader/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
