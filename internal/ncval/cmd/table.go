package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ncval/internal/arm"
)

func newTableCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "table [word...]",
		Short: "Show the ARM decision table",
		Long: `Build the decision table used by the ARM decoder and print its size.
With arguments, look up each instruction word and print the rule it
decodes to.`,
		Example: `
# Table statistics and the full trie
ncval table --tree

# Which rule handles bx lr?
ncval table 0xe12fff1e
  `,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := arm.NewDecoder()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			t := d.Table()

			if len(args) > 0 {
				for _, s := range args {
					w, err := strconv.ParseUint(s, 0, 32)
					if err != nil {
						return fmt.Errorf("invalid instruction word %q: %w", s, err)
					}
					r, ok := t.Lookup(uint32(w))
					if !ok {
						fmt.Fprintf(out, "%08x  no rule\n", w)
						continue
					}
					fmt.Fprintf(out, "%08x  %-10s %-16s %s\n", w, r.Name, d.Class(uint32(w)), r.Pattern)
				}
				return nil
			}

			fmt.Fprintln(out, t.Stats())
			if tree, _ := cmd.Flags().GetBool("tree"); tree {
				return t.Dump(out)
			}
			return nil
		},
	}
	c.Flags().BoolP("tree", "t", false, "Print the trie")
	return c
}
