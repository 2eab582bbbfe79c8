package main

import (
	"fmt"
	"os"

	"github.com/a11ykraft/a11ykraft/internal/adapters/inbound/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
