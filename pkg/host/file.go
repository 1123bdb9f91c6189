package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/macropower/rulelimits/pkg/ruleset"
	"github.com/macropower/rulelimits/pkg/yaml"
)

// ErrNoResult is returned by [File.Result] when the state carries no
// configuration result.
var ErrNoResult = errors.New("no configuration result")

// State is the host state as exported by the extension.
type State struct {
	// EnabledRulesets lists the static rulesets the engine has enabled.
	EnabledRulesets []string `json:"enabledRulesets" yaml:"enabledRulesets"`
	// AvailableStaticRuleCount is the remaining global static rule quota.
	AvailableStaticRuleCount int `json:"availableStaticRuleCount" yaml:"availableStaticRuleCount"`
	// Result is the outcome of the last configuration apply, if any.
	Result *ruleset.ConfigurationResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// File is a [Host] that reads [State] from a YAML file on every query, so
// external updates are observed without a restart.
type File struct {
	path string
}

// NewFile creates a [File] host reading from path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the state file path.
func (f *File) Path() string {
	return f.path
}

// State reads and decodes the state file.
func (f *File) State(_ context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrUnavailable, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	state := &State{}

	err = yaml.Unmarshal(data, state)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrUnavailable, f.path, err)
	}

	return state, nil
}

// WriteState replaces the state file.
func (f *File) WriteState(state *State) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode host state: %w", err)
	}

	err = os.MkdirAll(filepath.Dir(f.path), 0o700)
	if err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	err = os.WriteFile(f.path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write host state: %w", err)
	}

	return nil
}

func (f *File) AvailableStaticRuleCount(ctx context.Context) (int, error) {
	state, err := f.State(ctx)
	if err != nil {
		return 0, err
	}

	return state.AvailableStaticRuleCount, nil
}

func (f *File) EnabledRulesets(ctx context.Context) ([]string, error) {
	state, err := f.State(ctx)
	if err != nil {
		return nil, err
	}

	return state.EnabledRulesets, nil
}

// Result returns the configuration result recorded in the state file.
func (f *File) Result(ctx context.Context) (*ruleset.ConfigurationResult, error) {
	state, err := f.State(ctx)
	if err != nil {
		return nil, err
	}
	if state.Result == nil {
		return nil, fmt.Errorf("%w in %s", ErrNoResult, f.path)
	}

	return state.Result, nil
}

// Watch calls fn whenever the state file is written, until ctx is done. The
// parent directory is watched so that editors replacing the file are seen.
func (f *File) Watch(ctx context.Context, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	defer func() {
		err := watcher.Close()
		if err != nil {
			slog.Error("close watcher", slog.Any("err", err))
		}
	}()

	dir := filepath.Dir(f.path)

	err = watcher.Add(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Has(fsnotify.Create) || evt.Has(fsnotify.Write) || evt.Has(fsnotify.Rename) {
				fn()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.WarnContext(ctx, "host state watcher error", slog.Any("err", err))
		}
	}
}
