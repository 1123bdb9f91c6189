package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/quota"
)

// GetLimitsParams defines parameters for the get_limits tool.
type GetLimitsParams struct{}

// GetLimitsResult contains the result of the get_limits tool.
type GetLimitsResult struct {
	Limits               *quota.View   `json:"limits,omitempty"`
	Status               string        `json:"status"`
	Message              string        `json:"message"`
	Exceeded             []string      `json:"exceeded"`
	Alerts               []alert.Alert `json:"alerts"`
	FilterLimitsExceeded bool          `json:"filterLimitsExceeded"`
}

func (s *Server) handleGetLimits(
	ctx context.Context,
	_ *mcp.ServerSession,
	_ *mcp.CallToolParamsFor[GetLimitsParams],
) (*mcp.CallToolResultFor[GetLimitsResult], error) {
	result := GetLimitsResult{
		Exceeded: []string{},
		Alerts:   []alert.Alert{},
	}

	snap, err := s.svc.Limits(ctx)
	if errors.Is(err, quota.ErrNoConfiguration) {
		result.Status = "no-configuration"
		result.Message = "No configuration has been applied yet."

		return textResult(result.Message, result), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get limits: %w", err)
	}

	view := snap.View()
	result.Limits = &view
	result.Status = "ok"
	result.FilterLimitsExceeded = s.svc.FilterLimitsExceeded(ctx)
	result.Exceeded = append(result.Exceeded, snap.Exceeded()...)
	result.Alerts = append(result.Alerts, alert.Evaluate(s.rules, snap)...)
	result.Message = limitsMessage(snap, result.Alerts)

	return textResult(result.Message, result), nil
}

func limitsMessage(snap quota.Snapshot, alerts []alert.Alert) string {
	b := &strings.Builder{}
	for _, c := range snap.Categories() {
		fmt.Fprintf(b, "%s: %d/%d\n", c.Name, c.Limit.Enabled, c.Limit.Maximum)
	}

	if snap.Broken() {
		fmt.Fprintf(b, "Divergence recorded: expected filters %v, enabled filters %v.\n",
			snap.ExpectedEnabledFilters(), snap.ActuallyEnabledFilters())
	}

	for _, a := range alerts {
		fmt.Fprintf(b, "[%s] %s: %s\n", a.Severity, a.Name, a.Message)
	}

	return strings.TrimSuffix(b.String(), "\n")
}
