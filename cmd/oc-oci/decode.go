package main

import (
	"github.com/opencitations/index-sub000/identifier"
	"github.com/opencitations/index-sub000/oci"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
)

// Decoded is the output of the decode command.
type Decoded struct {
	OCI     string `json:"oci"`
	Service string `json:"service,omitempty"`
	Citing  string `json:"citing"`
	Cited   string `json:"cited"`
}

func newDecodeCmd(a *app) *cobra.Command {
	var (
		scheme string
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "decode <oci>...",
		Short: "Recover the identifiers of OCI",
		Long: `Recover the citing and cited identifiers of OCI, one JSON object per line.

The service, and so identifier scheme and prefix, is found in the
configured registry, unless both --scheme and --prefix are given.

Example:
  oc-oci decode oci:02001010806360107050663080702026306630509-02001010806360107050663080702026305630301`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.openTable()
			if err != nil {
				return err
			}
			var (
				codec     = oci.NewCodec(t)
				validator = a.cfg.Validator()
				enc       = json.NewEncoder(cmd.OutOrStdout())
			)
			for _, v := range args {
				d := Decoded{OCI: v}
				s, p := identifier.Scheme(scheme), prefix
				if scheme == "" || prefix == "" {
					svc, err := validator.Validate(v)
					if err != nil {
						return invalid("%v", err)
					}
					d.Service, s, p = svc.Name, svc.Scheme, svc.Prefix
				}
				if _, err := identifier.ForScheme(s); err != nil {
					return invalid("%v", err)
				}
				citing, cited, err := codec.Decode(v, s, p)
				if err != nil {
					return invalid("%v", err)
				}
				d.Citing, d.Cited = s.Prefix()+citing, s.Prefix()+cited
				if err := enc.Encode(d); err != nil {
					return fatal(err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "", "identifier scheme: doi, pmid or omid")
	cmd.Flags().StringVar(&prefix, "prefix", "", "supplier prefix")
	return cmd
}
