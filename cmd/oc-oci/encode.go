package main

import (
	"errors"
	"fmt"

	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/oci"
	"github.com/spf13/cobra"
)

func newEncodeCmd(a *app) *cobra.Command {
	var prefix, service string
	cmd := &cobra.Command{
		Use:   "encode <citing> <cited>",
		Short: "Mint the OCI of a citation",
		Long: `Mint the OCI of a citation between two prefixed identifiers.

The supplier prefix is taken from --prefix, from the service named with
--service, or from the config file.

Example:
  oc-oci encode --service COCI doi:10.1007/s11192-018-2988-z doi:10.5281/zenodo.3344898`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			citing, err := identifier.Parse(args[0])
			if err != nil {
				return invalid("citing: %v", err)
			}
			cited, err := identifier.Parse(args[1])
			if err != nil {
				return invalid("cited: %v", err)
			}
			p := a.cfg.Prefix
			if service != "" {
				s, ok := a.cfg.Validator().ServiceByName(service)
				if !ok {
					return invalid("unknown service %q", service)
				}
				p = s.Prefix
			}
			if cmd.Flags().Changed("prefix") {
				p = prefix
			}
			t, err := a.openTable()
			if err != nil {
				return err
			}
			v, err := oci.NewCodec(t).OCI(citing, cited, p)
			switch {
			case errors.Is(err, oci.ErrNotEncodable):
				return invalid("%v", err)
			case err != nil:
				return fatal(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "supplier prefix, e.g. 020")
	cmd.Flags().StringVar(&service, "service", "", "take the prefix of a configured service")
	return cmd
}
