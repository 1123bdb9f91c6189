package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/macropower/rulelimits/pkg/reconcile"
)

// CheckAndReconcileParams defines parameters for the check_and_reconcile tool.
type CheckAndReconcileParams struct {
	Skip bool `json:"skip,omitempty"`
}

// CheckAndReconcileResult contains the result of the check_and_reconcile tool.
type CheckAndReconcileResult struct {
	Message          string   `json:"message"`
	Expected         []uint32 `json:"expected"`
	Actual           []uint32 `json:"actual"`
	FiltersToDisable []uint32 `json:"filtersToDisable"`
	Skipped          bool     `json:"skipped"`
	Broken           bool     `json:"broken"`
	Healed           bool     `json:"healed"`
}

func (s *Server) handleCheckAndReconcile(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[CheckAndReconcileParams],
) (*mcp.CallToolResultFor[CheckAndReconcileResult], error) {
	mode := reconcile.CheckModeFull
	if params.Arguments.Skip {
		mode = reconcile.CheckModeSkip
	}

	report, err := s.svc.CheckAndReconcile(ctx, mode, s.update)
	if err != nil {
		return nil, fmt.Errorf("check and reconcile: %w", err)
	}

	result := CheckAndReconcileResult{
		Expected:         []uint32{},
		Actual:           []uint32{},
		FiltersToDisable: []uint32{},
	}

	if report == nil {
		result.Skipped = true
		result.Message = "Check skipped."

		return textResult(result.Message, result), nil
	}

	result.Expected = append(result.Expected, report.Expected...)
	result.Actual = append(result.Actual, report.Actual...)
	result.FiltersToDisable = append(result.FiltersToDisable, report.FiltersToDisable...)
	result.Broken = report.Broken
	result.Healed = report.Healed

	switch {
	case report.Broken:
		result.Message = fmt.Sprintf("Filters diverged: disabled %v.", report.FiltersToDisable)
	case report.Healed:
		result.Message = "Filters are consistent. The previous divergence was cleared."
	default:
		result.Message = "Filters are consistent."
	}

	return textResult(result.Message, result), nil
}

// ClearWarningParams defines parameters for the clear_warning tool.
type ClearWarningParams struct{}

// ClearWarningResult contains the result of the clear_warning tool.
type ClearWarningResult struct {
	Message string `json:"message"`
}

func (s *Server) handleClearWarning(
	ctx context.Context,
	_ *mcp.ServerSession,
	_ *mcp.CallToolParamsFor[ClearWarningParams],
) (*mcp.CallToolResultFor[ClearWarningResult], error) {
	err := s.svc.ClearDivergenceWarning(ctx)
	if err != nil {
		return nil, fmt.Errorf("clear warning: %w", err)
	}

	result := ClearWarningResult{Message: "Divergence warning cleared."}

	return textResult(result.Message, result), nil
}
