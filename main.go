package main

import (
	"fmt"
	"os"

	"github.com/asaidimu/go-plane/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
