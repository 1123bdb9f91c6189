package config

import (
	"fmt"

	"github.com/macropower/rulelimits/api"
	"github.com/macropower/rulelimits/api/v1beta1"
	"github.com/macropower/rulelimits/pkg/yaml"
)

// Validator checks a decoded document before it is loaded.
type Validator interface {
	Validate(data any) error
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*loaderOptions)

type loaderOptions struct {
	validator Validator
}

// WithValidator replaces the default validator. A nil validator disables
// schema validation.
func WithValidator(v Validator) LoaderOpt {
	return func(o *loaderOptions) {
		o.validator = v
	}
}

// Loader decodes one versioned document of type T.
type Loader[T v1beta1.Object] struct {
	validator Validator
	newFunc   func() T
	path      string
	data      []byte
}

// NewLoaderFromBytes creates a [Loader] for data. newFunc returns a fresh T
// with its type metadata set, such as configs.New.
func NewLoaderFromBytes[T v1beta1.Object](
	data []byte,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) *Loader[T] {
	o := &loaderOptions{validator: defaultValidator}
	for _, opt := range opts {
		opt(o)
	}

	return &Loader[T]{
		validator: o.validator,
		newFunc:   newFunc,
		data:      data,
	}
}

// NewLoaderFromFile reads path and creates a [Loader] for its contents.
// Errors returned by the loader are prefixed with path.
func NewLoaderFromFile[T v1beta1.Object](
	path string,
	newFunc func() T,
	defaultValidator Validator,
	opts ...LoaderOpt,
) (*Loader[T], error) {
	data, err := api.ReadFile(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already carries the path.
	}

	l := NewLoaderFromBytes(data, newFunc, defaultValidator, opts...)
	l.path = path

	return l, nil
}

// Path returns the file the loader read, or "" for in-memory data.
func (l *Loader[T]) Path() string {
	return l.path
}

// Validate decodes the document generically and checks it against the
// schema.
func (l *Loader[T]) Validate() error {
	if l.validator == nil {
		return l.unmarshal(new(any))
	}

	var doc any

	err := l.unmarshal(&doc)
	if err != nil {
		return err
	}

	err = l.validator.Validate(doc)
	if err != nil {
		return l.annotate(yaml.NewErrorWrapper(yaml.WithSource(l.data)).Wrap(err))
	}

	return nil
}

// Load decodes the document into a new T and applies its defaults.
//
//nolint:ireturn // T is the caller's concrete type.
func (l *Loader[T]) Load() (T, error) {
	cfg := l.newFunc()

	err := l.unmarshal(cfg)
	if err != nil {
		var zero T
		return zero, err
	}

	cfg.EnsureDefaults()

	return cfg, nil
}

func (l *Loader[T]) unmarshal(v any) error {
	return l.annotate(yaml.Unmarshal(l.data, v))
}

func (l *Loader[T]) annotate(err error) error {
	if err == nil || l.path == "" {
		return err
	}

	return fmt.Errorf("%s: %w", l.path, err)
}
