// Package api holds file helpers shared by the versioned configuration
// types.
package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/macropower/rulelimits/pkg/yaml"
)

const appName = "rulelimits"

// GetConfigPath returns filename under $XDG_CONFIG_HOME/rulelimits, falling
// back to ~/.config and then the temp directory.
func GetConfigPath(filename string) string {
	return userPath("XDG_CONFIG_HOME", ".config", filename)
}

// GetStatePath returns filename under $XDG_STATE_HOME/rulelimits, falling
// back to ~/.local/state and then the temp directory. Divergence records and
// host state live here.
func GetStatePath(filename string) string {
	return userPath("XDG_STATE_HOME", filepath.Join(".local", "state"), filename)
}

func userPath(env, homeDir, filename string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName, filename)
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, homeDir, appName, filename)
	}

	p := filepath.Join(os.TempDir(), appName, filename)
	slog.Warn("no user directory, using temp path",
		slog.String("path", p),
		slog.String("env", env),
		slog.Any("err", err),
	)

	return p
}

// checkRegular reports whether path exists as a regular file. Directories
// and other file types are errors.
func checkRegular(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return false, fmt.Errorf("stat file: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("%s: path is a directory", path)
	case !info.Mode().IsRegular():
		return false, fmt.Errorf("%s: unknown file state", path)
	}

	return true, nil
}

// ReadFile reads a regular file. Missing files wrap [fs.ErrNotExist].
func ReadFile(path string) ([]byte, error) {
	_, err := checkRegular(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is user supplied by design.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// MarshalYAML serializes obj with the shared YAML encoder settings.
func MarshalYAML(obj any) ([]byte, error) {
	b, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", obj, err)
	}

	return b, nil
}

// WriteDefaultFile writes defaultData to path unless a file already exists.
// With force, an existing file is renamed to a timestamped .old backup
// first. The kind names the file in logs and errors.
func WriteDefaultFile(path string, defaultData []byte, force bool, kind string) error {
	exists, err := checkRegular(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	log := slog.With(slog.String("type", kind), slog.String("path", path))

	if exists && !force {
		log.Debug("file already exists, skipping write")
		return nil
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if exists {
		backup := fmt.Sprintf("%s.%d.old", path, time.Now().UnixNano())
		log.Info("backing up existing file", slog.String("backup", backup))

		err = os.Rename(path, backup)
		if err != nil {
			return fmt.Errorf("back up %s file: %w", kind, err)
		}
	}

	log.Info("writing default file")

	err = os.WriteFile(path, defaultData, 0o600)
	if err != nil {
		return fmt.Errorf("write %s file: %w", kind, err)
	}

	return nil
}
