package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/infinivision/mvbtree/command"
	"github.com/infinivision/mvbtree/db"
	"github.com/spf13/cobra"
)

func replCommand() *cobra.Command {
	cfg := db.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Run commands read from standard input",
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := db.Open(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			rd := bufio.NewScanner(os.Stdin)
			for rd.Scan() {
				line := strings.TrimSpace(rd.Text())
				if len(line) == 0 {
					continue
				}
				for _, r := range command.Run(d, "stdin", line) {
					fmt.Println(r)
				}
			}
			return rd.Err()
		},
	}
	cmd.Flags().StringVar(&cfg.DirName, "dir", cfg.DirName, "data directory")
	cmd.Flags().IntVar(&cfg.NodeSize, "node-size", cfg.NodeSize, "items per node before a split")
	return cmd
}
