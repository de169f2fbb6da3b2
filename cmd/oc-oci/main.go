// oc-oci encodes, decodes and validates Open Citation Identifiers.
//
// $ oc-oci encode doi:10.1007/s11192-018-2988-z doi:10.5281/zenodo.3344898
// $ oc-oci decode oci:06101-06102
// $ oc-oci validate < ocis.txt
package main

import (
	"errors"
	"fmt"
	"os"

	index "github.com/opencitations/index-sub000"
	"github.com/opencitations/index-sub000/config"
	"github.com/opencitations/index-sub000/oci"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitInvalid
}

// app is the state shared by all subcommands.
type app struct {
	configFile string
	lookup     string
	cfg        config.Config
	table      *oci.LookupTable
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "oc-oci",
		Short: "Work with Open Citation Identifiers",
		Long: `oc-oci converts pairs of identifiers into OCI and back.

DOI and PMID are encoded character by character through the lookup table,
which grows when new characters are encoded. OMID are used as they are.
Services and their supplier prefixes come from the config file.`,
		Version:       index.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.table == nil {
				return nil
			}
			if err := a.table.Close(); err != nil {
				return fatal(err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&a.lookup, "lookup", "", "lookup table, empty for an in-memory table")
	root.AddCommand(
		newEncodeCmd(a),
		newDecodeCmd(a),
		newValidateCmd(a),
		newLookupCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fatal(err)
	}
	if cmd.Flags().Changed("lookup") {
		cfg.Lookup = a.lookup
	}
	a.cfg = cfg
	return nil
}

// openTable opens the lookup table on first use.
func (a *app) openTable() (*oci.LookupTable, error) {
	if a.table != nil {
		return a.table, nil
	}
	t, err := a.cfg.OpenLookupTable()
	if err != nil {
		return nil, fatal(err)
	}
	a.table = t
	return t, nil
}
