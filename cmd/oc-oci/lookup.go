package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [<chars>]",
		Short: "Show the lookup table",
		Long: `Without arguments, print every character of the lookup table with its
code. With arguments, print the code of each of their characters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.openTable()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, e := range t.Entries() {
					fmt.Fprintf(w, "%s\t%q\n", e.Code, e.Char)
				}
				return nil
			}
			for _, arg := range args {
				for _, c := range arg {
					code, ok := t.Code(c)
					if !ok {
						return invalid("character %q not in lookup table", c)
					}
					fmt.Fprintf(w, "%q\t%s\n", c, code)
				}
			}
			return nil
		},
	}
}
