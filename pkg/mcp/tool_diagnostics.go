package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RecentDiagnosticsParams defines parameters for the recent_diagnostics tool.
type RecentDiagnosticsParams struct {
	Lines int `json:"lines,omitempty"`
}

// RecentDiagnosticsResult contains the result of the recent_diagnostics tool.
type RecentDiagnosticsResult struct {
	Message string   `json:"message"`
	Lines   []string `json:"lines"`
}

func (s *Server) handleRecentDiagnostics(
	_ context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[RecentDiagnosticsParams],
) (*mcp.CallToolResultFor[RecentDiagnosticsResult], error) {
	n := params.Arguments.Lines
	if n <= 0 {
		n = defaultDiagnosticLines
	}

	result := RecentDiagnosticsResult{Lines: []string{}}
	if s.ring != nil {
		result.Lines = append(result.Lines, s.ring.Tail(n)...)
	}

	result.Message = fmt.Sprintf("Returned %d log lines.", len(result.Lines))

	return textResult(result.Message, result), nil
}
