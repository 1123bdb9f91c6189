package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macropower/rulelimits/pkg/version"
)

func NewVersionCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			info := version.Get()

			if output == OutputText || output == "" {
				mustN(fmt.Fprintln(w, info.String()))
				return nil
			}

			return encode(w, output, info)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", OutputText, "Output format, one of: [text json yaml]")

	return cmd
}
