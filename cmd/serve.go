package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/handlers"
	"github.com/ekaya-inc/ekaya-askdb/pkg/mcp"
	"github.com/ekaya-inc/ekaya-askdb/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-askdb/pkg/middleware"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

const (
	sessionSweepInterval = time.Minute
	shutdownTimeout      = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the MCP endpoint",
	Long: `Start the HTTP server. Routes:

  POST   /api/sessions                 create a conversation
  POST   /api/sessions/{sid}/ask       ask a question in that conversation
  GET    /api/sessions/{sid}/history   list the recorded turns
  DELETE /api/sessions/{sid}           end the conversation
  GET    /api/schema                   the introspected schema
  GET    /health, /ping, /metrics
  POST   /mcp                          MCP streamable HTTP transport`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := a.newSessionStore()
	go sessions.Run(ctx, sessionSweepInterval)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.routes(sessions),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting askdb",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down askdb")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		_ = server.Close()
		return err
	}
	return nil
}

// routes builds the HTTP handler tree for the API, the MCP endpoint and the
// operational endpoints.
func (a *app) routes(sessions *services.SessionStore) http.Handler {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.adapter, a.logger).RegisterRoutes(mux)
	handlers.NewSessionsHandler(a.ask, sessions, a.logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(a.schemas, a.logger).RegisterRoutes(mux)
	handlers.NewMetricsHandler(a.registry).RegisterRoutes(mux)

	mcpServer := mcp.NewServer(a.cfg.Version, &tools.ToolDeps{
		AskService:    a.ask,
		SchemaService: a.schemas,
		Sessions:      sessions,
		Store:         a.adapter,
		Dialect:       a.dialect.DisplayName(),
		Version:       a.cfg.Version,
		Logger:        a.logger,
	}, mcp.NewAuditLogger(a.metrics, a.logger), a.logger)
	mux.Handle("/mcp", middleware.MCPRequestLogger(a.logger)(mcpServer.NewStreamableHTTPServer()))

	// The request logger reads the matched route, so it wraps the mux directly.
	return middleware.ClientIP(middleware.RequestLogger(a.logger, a.metrics)(mux))
}
