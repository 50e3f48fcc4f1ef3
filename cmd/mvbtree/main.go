package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "mvbtree",
		Short:        "Transactional multi-version B-tree key-value store",
		SilenceUsage: true,
	}
	root.AddCommand(serveCommand(), replCommand(), dumpCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
