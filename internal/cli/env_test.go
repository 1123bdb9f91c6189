package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/internal/cli"
)

//nolint:paralleltest // Uses t.Setenv.
func TestBindEnvVars(t *testing.T) {
	tcs := map[string]struct {
		env  map[string]string
		args []string
		want map[string]string
	}{
		"defaults": {
			want: map[string]string{
				"log-level":  "info",
				"log-format": "text",
				"config":     "",
			},
		},
		"environment sets defaults": {
			env: map[string]string{
				"RULELIMITS_LOG_LEVEL": "debug",
				"RULELIMITS_CONFIG":    "/etc/rulelimits.yaml",
			},
			want: map[string]string{
				"log-level":  "debug",
				"log-format": "text",
				"config":     "/etc/rulelimits.yaml",
			},
		},
		"arguments win": {
			env: map[string]string{
				"RULELIMITS_LOG_LEVEL":  "debug",
				"RULELIMITS_LOG_FORMAT": "json",
			},
			args: []string{"--log-level", "error"},
			want: map[string]string{
				"log-level":  "error",
				"log-format": "json",
			},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cmd := cli.NewRootCmd()
			require.NoError(t, cmd.ParseFlags(tc.args))

			for flag, want := range tc.want {
				got, err := cmd.Flags().GetString(flag)
				require.NoError(t, err)
				assert.Equal(t, want, got, flag)
			}
		})
	}
}

func TestBindEnvVars_Usage(t *testing.T) {
	t.Parallel()

	cmd := cli.NewRootCmd()

	for flag, env := range map[string]string{
		"log-level":      "$RULELIMITS_LOG_LEVEL",
		"config":         "$RULELIMITS_CONFIG",
		"trace-endpoint": "$RULELIMITS_TRACE_ENDPOINT",
	} {
		f := cmd.PersistentFlags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Contains(t, f.Usage, env)
	}
}

//nolint:paralleltest // Uses t.Setenv.
func TestBindEnvVars_Subcommands(t *testing.T) {
	t.Setenv("RULELIMITS_METRICS_ADDRESS", ":9999")
	t.Setenv("RULELIMITS_WATCH", "not-a-bool")

	cmd := cli.NewRootCmd()

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	addr := serve.Flags().Lookup("metrics-address")
	require.NotNil(t, addr)
	assert.Equal(t, ":9999", addr.Value.String())
	assert.Contains(t, addr.Usage, "$RULELIMITS_METRICS_ADDRESS")

	// Invalid values keep the default.
	watch := serve.Flags().Lookup("watch")
	require.NotNil(t, watch)
	assert.Equal(t, "false", watch.Value.String())
}
