package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/snapshot"
	"github.com/spf13/cobra"
)

func dumpCommand() *cobra.Command {
	var chains bool

	cmd := &cobra.Command{
		Use:   "dump <TREE file>",
		Short: "Print statistics of a checkpoint file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			root, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			t, err := btree.FromRoot(btree.DefaultConfig(), root)
			if err != nil {
				return err
			}
			var versions int
			t.Chains(func(_ uint32, vs []btree.Version) []btree.Version {
				versions += len(vs)
				return vs
			})
			if chains {
				for _, k := range t.Keys() {
					vs, _ := t.FetchVersions(k, false)
					fmt.Printf("%d:", k)
					for _, v := range vs {
						if v.Xmax == nil {
							fmt.Printf(" [%d,-) %q", v.Xmin, v.Value)
						} else {
							fmt.Printf(" [%d,%d) %q", v.Xmin, *v.Xmax, v.Value)
						}
					}
					fmt.Println()
				}
			}
			fmt.Printf("file:     %s (%s)\n", args[0], humanize.Bytes(uint64(st.Size())))
			fmt.Printf("keys:     %s\n", humanize.Comma(int64(t.Len())))
			fmt.Printf("versions: %s\n", humanize.Comma(int64(versions)))
			fmt.Printf("height:   %d\n", t.Height())
			return nil
		},
	}
	cmd.Flags().BoolVar(&chains, "chains", false, "print every version chain")
	return cmd
}
