package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/drift"
	"github.com/macropower/rulelimits/pkg/quota"
	"github.com/macropower/rulelimits/pkg/yaml"
)

const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

var (
	ErrUnknownOutput = errors.New("unknown output format")

	AllOutputs = []string{OutputAuto, OutputText, OutputJSON, OutputYAML}
)

// resolveOutput picks text for terminals and YAML otherwise when format is
// [OutputAuto].
func resolveOutput(format string, w io.Writer) (string, error) {
	if !slices.Contains(AllOutputs, format) {
		return "", fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}
	if format != OutputAuto {
		return format, nil
	}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: fd fits in int.
		return OutputText, nil
	}

	return OutputYAML, nil
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(v)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

	case OutputYAML:
		enc := yaml.NewEncoder(w)

		err := enc.Encode(v)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		err = enc.Close()
		if err != nil {
			return fmt.Errorf("close yaml encoder: %w", err)
		}

	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}

	return nil
}

// limitsOutput is the structured form of the limits command.
type limitsOutput struct {
	Limits               quota.View    `json:"limits"`
	Exceeded             []string      `json:"exceeded"`
	Alerts               []alert.Alert `json:"alerts"`
	FilterLimitsExceeded bool          `json:"filterLimitsExceeded"`
}

func newLimitsOutput(snap quota.Snapshot, alerts []alert.Alert, filterLimitsExceeded bool) limitsOutput {
	return limitsOutput{
		Limits:               snap.View(),
		Exceeded:             append([]string{}, snap.Exceeded()...),
		Alerts:               append([]alert.Alert{}, alerts...),
		FilterLimitsExceeded: filterLimitsExceeded,
	}
}

func printLimits(w io.Writer, out limitsOutput, snap quota.Snapshot) {
	p := termenv.NewOutput(w)

	mustN(fmt.Fprintln(w, p.String("Rule quotas").Bold()))

	for _, c := range snap.Categories() {
		line := fmt.Sprintf("  %-16s %9s / %-9s",
			c.Name, humanize.Comma(int64(c.Limit.Enabled)), humanize.Comma(int64(c.Limit.Maximum))) //nolint:gosec // G115: counts fit in int64.
		if c.Limit.Exceeded() {
			mustN(fmt.Fprintln(w, p.String(line+" exceeded").Bold().Foreground(termenv.ANSIRed)))
			continue
		}

		mustN(fmt.Fprintln(w, line))
	}

	if snap.Broken() {
		mustN(fmt.Fprintln(w))
		mustN(fmt.Fprintf(w, "%s expected filters %v, enabled filters %v\n",
			p.String("Divergence recorded:").Bold(),
			snap.ExpectedEnabledFilters(), snap.ActuallyEnabledFilters()))
	}
	if out.FilterLimitsExceeded {
		mustN(fmt.Fprintln(w, p.String("Filter limits exceeded: some filters could not be enabled.").Bold()))
	}

	printAlerts(w, p, out.Alerts)
}

func printAlerts(w io.Writer, p *termenv.Output, alerts []alert.Alert) {
	if len(alerts) == 0 {
		return
	}

	mustN(fmt.Fprintln(w))
	mustN(fmt.Fprintln(w, p.String("Alerts").Bold()))

	for _, a := range alerts {
		sev := p.String(fmt.Sprintf("[%s]", a.Severity))
		switch a.Severity {
		case alert.SeverityCritical:
			sev = sev.Foreground(termenv.ANSIRed)
		case alert.SeverityWarning:
			sev = sev.Foreground(termenv.ANSIYellow)
		}

		mustN(fmt.Fprintf(w, "  %s %s: %s\n", sev, a.Name, a.Message))
	}
}

func printReport(w io.Writer, report *drift.Report) {
	p := termenv.NewOutput(w)

	switch {
	case report == nil:
		mustN(fmt.Fprintln(w, "Check skipped."))
	case report.Broken:
		mustN(fmt.Fprintf(w, "%s expected %v, engine enabled %v, disabled %v\n",
			p.String("Filters diverged:").Bold().Foreground(termenv.ANSIYellow),
			report.Expected, report.Actual, report.FiltersToDisable))
	case report.Healed:
		mustN(fmt.Fprintln(w, p.String("Filters healed: divergence record cleared.").Bold()))
	default:
		mustN(fmt.Fprintln(w, "Filters are consistent."))
	}
}
