package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulelimits/pkg/alert"
	"github.com/macropower/rulelimits/pkg/drift"
	"github.com/macropower/rulelimits/pkg/log"
	"github.com/macropower/rulelimits/pkg/quota"
	"github.com/macropower/rulelimits/pkg/reconcile"
	"github.com/macropower/rulelimits/pkg/version"
)

// Reconciler is the subset of [reconcile.Service] the server calls.
type Reconciler interface {
	Limits(ctx context.Context) (quota.Snapshot, error)
	FilterLimitsExceeded(ctx context.Context) bool
	ClearDivergenceWarning(ctx context.Context) error
	CheckAndReconcile(ctx context.Context, mode reconcile.CheckMode, update reconcile.UpdateFunc) (*drift.Report, error)
}

var _ Reconciler = (*reconcile.Service)(nil)

// Server implements the MCP server for rulelimits.
type Server struct {
	svc     Reconciler
	update  reconcile.UpdateFunc
	ring    *log.Ring
	tracer  trace.Tracer
	server  *mcp.Server
	address string
	rules   []*alert.Rule
}

// ServerOpt configures a [Server].
type ServerOpt func(*Server)

// WithUpdate sets the callback used by check_and_reconcile to re-apply the
// configuration.
func WithUpdate(fn reconcile.UpdateFunc) ServerOpt {
	return func(s *Server) {
		s.update = fn
	}
}

// WithRules sets the alert rules evaluated by get_limits.
func WithRules(rules []*alert.Rule) ServerOpt {
	return func(s *Server) {
		s.rules = rules
	}
}

// WithRing sets the log buffer read by recent_diagnostics.
func WithRing(r *log.Ring) ServerOpt {
	return func(s *Server) {
		s.ring = r
	}
}

// WithTracer overrides the tracer used for tool calls.
func WithTracer(t trace.Tracer) ServerOpt {
	return func(s *Server) {
		s.tracer = t
	}
}

// NewServer creates a new MCP server. An empty address serves over stdio.
func NewServer(address string, svc Reconciler, opts ...ServerOpt) *Server {
	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		address: address,
		svc:     svc,
		tracer:  otel.Tracer("mcp"),
		server:  mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_limits",
		Description: "Get the enabled and maximum rule counts for every rule category, the enabled filters, and any recorded divergence.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, WithTracing(s.tracer, s.handleGetLimits))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "check_and_reconcile",
		Description: "Compare the requested filters with the filters the rule engine enabled, and realign them when they differ.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"skip": {
					Type:        "boolean",
					Description: "Return immediately without checking.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleCheckAndReconcile))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_warning",
		Description: "Forget the recorded divergence. Call this once the user has acknowledged the warning.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, WithTracing(s.tracer, s.handleClearWarning))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_diagnostics",
		Description: "Get the most recent log lines.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"lines": {
					Type:        "integer",
					Description: "Maximum number of lines to return.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleRecentDiagnostics))
}

// Server returns the underlying [mcp.Server].
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Handler returns a streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// Serve starts the MCP server and blocks until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			slog.Error("shutdown MCP server", slog.Any("err", err))
		}
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)

	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func textResult[T any](msg string, out T) *mcp.CallToolResultFor[T] {
	return &mcp.CallToolResultFor[T]{
		Content:           []mcp.Content{&mcp.TextContent{Text: msg}},
		StructuredContent: out,
	}
}
