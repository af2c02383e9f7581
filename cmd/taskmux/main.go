package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:   "taskmux",
		Short: "Natural-language task dispatch engine",
	}

	root.AddCommand(serveCMD(), dispatchCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
