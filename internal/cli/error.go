package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/fang"
)

// usageErrorPrefixes match the messages cobra and pflag produce for bad
// arguments. Cobra does not expose a typed error for these.
var usageErrorPrefixes = []string{
	"flag needs an argument:",
	"unknown flag:",
	"unknown shorthand flag:",
	"unknown command",
	"invalid argument",
	"accepts ",
}

// ErrorHandler renders err for [fang.WithErrorHandler]. Usage errors get a
// pointer to --help.
func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	lines := []string{
		styles.ErrorHeader.String(),
		styles.ErrorText.Render(err.Error()),
		"",
	}
	if isUsageError(err) {
		lines = append(lines,
			styles.ErrorText.Render("Try "+styles.Program.Flag.Render("--help")+" for usage."),
			"",
		)
	}

	mustN(fmt.Fprintln(w, strings.Join(lines, "\n")))
}

func isUsageError(err error) bool {
	msg := err.Error()

	return slices.ContainsFunc(usageErrorPrefixes, func(prefix string) bool {
		return strings.HasPrefix(msg, prefix)
	})
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func mustN(_ int, err error) {
	must(err)
}
