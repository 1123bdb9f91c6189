package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrInvalidKey is returned for keys that cannot be used as file names.
	ErrInvalidKey = errors.New("invalid key")

	validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// File stores each key as a file in a directory. Writes go to a temporary
// file that is renamed over the target, so readers never see partial values.
type File struct {
	dir string
}

// NewFile creates a [File] store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	return &File{dir: dir}, nil
}

// Dir returns the store directory.
func (f *File) Dir() string {
	return f.dir
}

func (f *File) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(f.dir, key+".json"), nil
}

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p) //nolint:gosec // G304: key is validated.
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	return data, nil
}

func (f *File) Put(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	_, err = tmp.Write(value)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}

	err = os.Rename(tmpName, p)
	if err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}

	return nil
}

// Watch calls fn with the key of every value changed in the store directory,
// including changes made by other processes, until ctx is done.
func (f *File) Watch(ctx context.Context, fn func(key string)) error {
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

	err = watcher.Add(f.dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Rename) {
				continue
			}

			name := filepath.Base(evt.Name)
			if filepath.Ext(name) != ".json" || name[0] == '.' {
				continue
			}

			fn(name[:len(name)-len(".json")])

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.WarnContext(ctx, "store watcher error", slog.Any("err", err))
		}
	}
}
