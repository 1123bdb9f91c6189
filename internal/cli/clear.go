package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewClearWarningCmd(rootArgs *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-warning",
		Short: "Forget the recorded filter divergence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(rootArgs.ConfigPath)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			err = a.service.ClearDivergenceWarning(ctx)
			if err != nil {
				return err //nolint:wrapcheck // Already wrapped by the service.
			}

			mustN(fmt.Fprintln(cmd.OutOrStdout(), "Divergence warning cleared."))

			return nil
		},
	}
}
