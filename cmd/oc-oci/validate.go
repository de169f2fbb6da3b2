package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [<oci>...]",
		Short: "Check OCI against the configured services",
		Long: `Check the syntax of OCI and that both halves belong to the same
configured service. OCI are read from the arguments or, without arguments,
one per line from stdin. Each OCI is printed with its service name, or the
reason it is invalid. The exit code is 2 if any OCI is invalid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				validator = a.cfg.Validator()
				w         = cmd.OutOrStdout()
				failed    int
			)
			check := func(v string) {
				if s, err := validator.Validate(v); err != nil {
					failed++
					fmt.Fprintf(w, "%s\tinvalid: %v\n", v, err)
				} else {
					fmt.Fprintf(w, "%s\t%s\n", v, s.Name)
				}
			}
			if len(args) > 0 {
				for _, v := range args {
					check(v)
				}
			} else {
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					if v := strings.TrimSpace(sc.Text()); v != "" {
						check(v)
					}
				}
				if err := sc.Err(); err != nil {
					return fatal(err)
				}
			}
			if failed > 0 {
				return invalid("%d invalid oci", failed)
			}
			return nil
		},
	}
}
