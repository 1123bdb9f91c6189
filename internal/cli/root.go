package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/macropower/rulelimits/pkg/log"
)

const (
	cmdName = "rulelimits"
	cmdDesc = `Track rule quota usage of a browser rule engine and heal filter divergence.`
)

// RootArgs holds the flags shared by every command.
type RootArgs struct {
	LogLevel      string
	LogFormat     string
	ConfigPath    string
	TraceEndpoint string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.ConfigPath, "config", "", "Path to the rulelimits configuration file")
	cmd.PersistentFlags().
		StringVar(&ra.TraceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint to export traces to")

	must(cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	))
	must(cmd.MarkPersistentFlagFilename("config", "yaml", "yml"))
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()
	tracing := &tracing{}

	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		SilenceUsage:      true,
		PersistentPreRunE: setup(args, tracing),
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return tracing.Shutdown(cmd.Context())
		},
	}

	args.AddFlags(cmd)

	cmd.AddCommand(
		NewLimitsCmd(args),
		NewCheckCmd(args),
		NewClearWarningCmd(args),
		NewServeCmd(args),
		NewSimulateCmd(args),
		NewConfigCmd(args),
		NewVersionCmd(),
	)

	bindEnvVars(cmd)

	return cmd
}

func setup(ra *RootArgs, t *tracing) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		err = t.Start(cmd.Context(), ra.TraceEndpoint)
		if err != nil {
			return fmt.Errorf("start tracing: %w", err)
		}

		return nil
	}
}
