package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/rulelimits/api/v1beta1/configs"
)

func NewConfigCmd(rootArgs *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the rulelimits configuration",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		newConfigWriteCmd(rootArgs),
		newConfigShowCmd(rootArgs),
	)

	return cmd
}

func newConfigWriteCmd(rootArgs *RootArgs) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := rootArgs.ConfigPath
			if path == "" {
				path = configs.GetPath()
			}

			err := configs.WriteDefault(path, force)
			if err != nil {
				return err //nolint:wrapcheck // Already wrapped.
			}

			mustN(fmt.Fprintln(cmd.OutOrStdout(), path))

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Back up and replace an existing file")

	return cmd
}

func newConfigShowCmd(rootArgs *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootArgs.ConfigPath)
			if err != nil {
				return err
			}

			slog.Debug("active configuration", slog.String("path", rootArgs.ConfigPath))

			b, err := cfg.MarshalYAML()
			if err != nil {
				return fmt.Errorf("marshal config yaml: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(b)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			return nil
		},
	}
}
