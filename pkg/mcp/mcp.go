// Package mcp exposes the rule quota service as a Model Context Protocol
// server.
package mcp

const (
	name         = "rulelimits"
	instructions = `MCP Server 'rulelimits' reports how much of the browser rule engine's quota is in use, and whether the engine enabled every filter it was asked to.

Tools:
- 'get_limits' returns the enabled and maximum counts for every rule category, the filters the engine runs, the filters that were expected when divergence was last detected, and any alerts.
- 'check_and_reconcile' compares the requested filters with the engine state. On divergence it records the expected filters, disables the ones the engine rejected, and re-applies the configuration.
- 'clear_warning' forgets a recorded divergence once the user has acknowledged it.
- 'recent_diagnostics' returns the most recent log lines.

Call 'get_limits' first. Only call 'check_and_reconcile' after the filter configuration changed.
`
	defaultDiagnosticLines = 50
)
