package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix is prepended to every flag-derived environment variable.
var envPrefix = strings.ToUpper(cmdName) + "_"

// bindEnvVars lets every flag of cmd and its subcommands be set from the
// environment, e.g. --log-level from RULELIMITS_LOG_LEVEL and
// --metrics-address from RULELIMITS_METRICS_ADDRESS.
//
// Values are applied as defaults before argument parsing, so arguments take
// precedence over the environment, which takes precedence over built-in
// defaults. Flag usage is annotated with the variable name.
func bindEnvVars(cmd *cobra.Command) {
	bound := map[*pflag.Flag]bool{}

	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(func(flag *pflag.Flag) {
			if !bound[flag] {
				bound[flag] = true
				bindFlagToEnv(flag)
			}
		})
	}

	for _, sub := range cmd.Commands() {
		bindEnvVars(sub)
	}
}

func bindFlagToEnv(flag *pflag.Flag) {
	name := flagToEnvName(flag.Name)
	if !strings.Contains(flag.Usage, name) {
		flag.Usage += fmt.Sprintf(" ($%s)", name)
	}

	value, ok := os.LookupEnv(name)
	if !ok || flag.Changed {
		return
	}

	err := flag.Value.Set(value)
	if err != nil {
		// Keep the default; argument parsing may still set the flag.
		slog.Error("ignoring invalid environment variable",
			slog.String("env", name),
			slog.String("value", value),
			slog.Any("err", err),
		)
	}
}

// flagToEnvName maps "log-level" to "RULELIMITS_LOG_LEVEL".
func flagToEnvName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
