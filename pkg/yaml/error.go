package yaml

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/token"
)

// Error is a decoding or validation error located in a YAML document, either
// by [*yaml.Path] or by [*token.Token]. When Source is set, path errors
// include an annotated excerpt.
type Error struct {
	Err    error
	Path   *yaml.Path
	Token  *token.Token
	Source []byte
}

// ErrorOpt sets optional [Error] fields.
type ErrorOpt func(e *Error)

func WithPath(path *yaml.Path) ErrorOpt {
	return func(e *Error) { e.Path = path }
}

func WithToken(tk *token.Token) ErrorOpt {
	return func(e *Error) { e.Token = tk }
}

func WithSource(source []byte) ErrorOpt {
	return func(e *Error) { e.Source = source }
}

func NewError(err error, opts ...ErrorOpt) *Error {
	e := &Error{Err: err}
	e.apply(opts)

	return e
}

func (e *Error) apply(opts []ErrorOpt) {
	for _, opt := range opts {
		opt(e)
	}
}

func (e Error) Unwrap() error {
	return e.Err
}

func (e Error) Error() string {
	switch {
	case e.Err == nil:
		return ""
	case e.Token != nil:
		pos := e.Token.Position
		return fmt.Sprintf("[%d:%d] %v", pos.Line, pos.Column, e.Err)
	case e.Path == nil:
		return e.Err.Error()
	}

	msg := fmt.Sprintf("error at %s: %v", e.Path, e.Err)
	if len(e.Source) == 0 {
		return msg
	}

	excerpt, err := e.Path.AnnotateSource(e.Source, false)
	if err != nil {
		slog.Debug("annotate source", slog.String("path", e.Path.String()), slog.Any("err", err))
		return msg
	}

	return msg + "\n" + string(excerpt)
}

// NewPathBuilder starts a [yaml.Path].
func NewPathBuilder() *yaml.PathBuilder {
	return &yaml.PathBuilder{}
}

// ErrorWrapper adds the same options, typically the document source, to
// every [Error] it sees.
type ErrorWrapper struct {
	Opts []ErrorOpt
}

func NewErrorWrapper(opts ...ErrorOpt) *ErrorWrapper {
	return &ErrorWrapper{Opts: opts}
}

// Wrap applies the wrapper options and opts to err if it is an [*Error].
// Other errors are returned unchanged.
func (ew *ErrorWrapper) Wrap(err error, opts ...ErrorOpt) error {
	var yamlErr *Error
	if !errors.As(err, &yamlErr) {
		return err
	}

	yamlErr.apply(ew.Opts)
	yamlErr.apply(opts)

	return yamlErr
}
