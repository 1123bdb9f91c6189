package configs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/api/v1beta1"
	"github.com/macropower/rulelimits/api/v1beta1/configs"
	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/config"
	"github.com/macropower/rulelimits/pkg/filter"
	"github.com/macropower/rulelimits/pkg/host"
	"github.com/macropower/rulelimits/pkg/kv"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	assert.Equal(t, "rulelimits.jacobcolvin.com/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())
	require.NotNil(t, cfg.Limits)
	assert.Equal(t, host.DefaultLimits(), *cfg.Limits)
	require.NotNil(t, cfg.Filters)
	assert.Equal(t, filter.DefaultCustomFiltersStartID, cfg.Filters.CustomFiltersStartID)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, kv.BackendFile, cfg.Storage.Backend)
	assert.NotNil(t, cfg.Host)
	assert.NotNil(t, cfg.Alerts)
	require.NoError(t, cfg.Validate())
}

func TestConfig_EnsureDefaults(t *testing.T) {
	t.Parallel()

	cfg := &configs.Config{
		Limits:  &host.Limits{MaxDynamicRules: 30000},
		Storage: &kv.Config{Backend: kv.BackendMemory},
	}

	cfg.EnsureDefaults()

	assert.Equal(t, 30000, cfg.Limits.MaxDynamicRules)
	assert.Equal(t, host.DefaultMaxRegexpRules, cfg.Limits.MaxRegexpRules)
	assert.Equal(t, host.DefaultMaxEnabledStaticRulesets, cfg.Limits.MaxEnabledStaticRulesets)
	assert.Equal(t, kv.BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, kv.DefaultBucket, cfg.Storage.Bucket)
	assert.NotNil(t, cfg.Filters)
	assert.NotNil(t, cfg.Host)
	assert.NotNil(t, cfg.Alerts)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		mutate func(c *configs.Config)
		err    error
		errMsg string
	}{
		"default": {
			mutate: func(*configs.Config) {},
		},
		"unknown api version": {
			mutate: func(c *configs.Config) { c.APIVersion = "kat.jacobcolvin.com/v1beta1" },
			err:    v1beta1.ErrUnsupportedAPIVersion,
		},
		"unknown kind": {
			mutate: func(c *configs.Config) { c.Kind = "Policy" },
			err:    v1beta1.ErrUnsupportedKind,
		},
		"duplicate filter": {
			mutate: func(c *configs.Config) {
				c.Filters.Catalog = []filter.Metadata{{FilterID: 1}, {FilterID: 1}}
			},
			err: filter.ErrDuplicateFilter,
		},
		"invalid alert expression": {
			mutate: func(c *configs.Config) {
				c.Alerts.Rules = []*alert.Rule{{Name: "bad", Expr: "dynamic.enabled"}}
			},
			errMsg: "validate alerts",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := configs.New()
			tc.mutate(cfg)

			err := cfg.Validate()

			switch {
			case tc.err != nil:
				require.ErrorIs(t, err, tc.err)
			case tc.errMsg != "":
				require.ErrorContains(t, err, tc.errMsg)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		setupPath func(t *testing.T) string
		errMsg    string
		force     bool
		wantErr   bool
	}{
		"new file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "config.yaml")
			},
		},
		"existing file": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				path := filepath.Join(t.TempDir(), "config.yaml")
				err := os.WriteFile(path, []byte("existing"), 0o600)
				require.NoError(t, err)

				return path
			},
		},
		"create parent directories": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return filepath.Join(t.TempDir(), "nested", "deep", "config.yaml")
			},
		},
		"path is directory": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				return t.TempDir()
			},
			wantErr: true,
			errMsg:  "path is a directory",
		},
		"force existing file creates backup": {
			setupPath: func(t *testing.T) string {
				t.Helper()

				path := filepath.Join(t.TempDir(), "config.yaml")
				err := os.WriteFile(path, []byte("existing content"), 0o600)
				require.NoError(t, err)

				return path
			},
			force: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := tc.setupPath(t)

			var originalContent []byte

			info, err := os.Stat(path)
			if err == nil && info.Mode().IsRegular() {
				originalContent, err = os.ReadFile(path)
				require.NoError(t, err)
			}

			err = configs.WriteDefault(path, tc.force)
			if tc.wantErr {
				require.ErrorContains(t, err, tc.errMsg)
				return
			}

			require.NoError(t, err)

			got, err := os.ReadFile(path)
			require.NoError(t, err)

			if len(originalContent) > 0 && !tc.force {
				assert.Equal(t, originalContent, got)
				return
			}

			assert.Contains(t, string(got), "kind: Configuration")

			if len(originalContent) == 0 {
				return
			}

			matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.old"))
			require.NoError(t, err)
			require.Len(t, matches, 1)

			backup, err := os.ReadFile(matches[0])
			require.NoError(t, err)
			assert.Equal(t, originalContent, backup)
		})
	}
}

//nolint:paralleltest // We need to set environment variables, so run tests sequentially.
func TestGetPath(t *testing.T) {
	tcs := map[string]struct {
		setupEnv func(t *testing.T)
		want     string
	}{
		"XDG_CONFIG_HOME is set": {
			setupEnv: func(t *testing.T) {
				t.Helper()
				t.Setenv("XDG_CONFIG_HOME", "/custom/config")
			},
			want: "/custom/config/rulelimits/config.yaml",
		},
		"XDG_CONFIG_HOME is empty and HOME is set": {
			setupEnv: func(t *testing.T) {
				t.Helper()
				t.Setenv("XDG_CONFIG_HOME", "")
				t.Setenv("HOME", "/test/home")
			},
			want: "/test/home/.config/rulelimits/config.yaml",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			tc.setupEnv(t)

			assert.Equal(t, tc.want, configs.GetPath())
		})
	}
}

func TestEmbeddedConfigMatchesSourceFile(t *testing.T) {
	t.Parallel()

	sourceConfig, err := os.ReadFile("config.yaml")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, configs.WriteDefault(path, false))

	embeddedConfig, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(sourceConfig), string(embeddedConfig))
}

func TestDefaultConfigFullPipeline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, configs.WriteDefault(path, false))

	cl, err := config.NewLoaderFromFile(path, configs.New, configs.DefaultValidator)
	require.NoError(t, err)
	require.NoError(t, cl.Validate())

	cfg, err := cl.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, host.DefaultLimits(), *cfg.Limits)
	assert.Len(t, cfg.Filters.Catalog, 3)
	assert.Equal(t, "ruleset_", cfg.Filters.RulesetPrefix)
	assert.Len(t, cfg.Alerts.All(), len(alert.DefaultRules())+1)

	data, err := cfg.MarshalYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiVersion: rulelimits.jacobcolvin.com/v1beta1")

	cl2 := config.NewLoaderFromBytes(data, configs.New, configs.DefaultValidator)
	require.NoError(t, cl2.Validate())

	cfg2, err := cl2.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Filters.Catalog, cfg2.Filters.Catalog)
	assert.Equal(t, *cfg.Limits, *cfg2.Limits)
	assert.Equal(t, cfg.Storage, cfg2.Storage)
}
