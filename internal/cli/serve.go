package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
	"github.com/roach88/dvgov/internal/ledger"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database string
	Addr     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger and its metrics over HTTP",
		Long: `Hold the database open and accept calls over HTTP until interrupted.

Endpoints:
  POST /invoke   {"action", "as", "args", "flow"} -> call receipt
  POST /query    {"view", "args"} -> view result
  GET  /healthz  height and deployment status
  GET  /metrics  Prometheus metrics

Examples:
  dvgov serve --db ./dvgov.db
  dvgov serve --db ./dvgov.db --addr 127.0.0.1:9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config metricsAddr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	addr := opts.Addr
	if addr == "" {
		cfg, err := opts.Config()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		addr = cfg.MetricsAddr
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := openSession(ctx, opts.RootOptions, opts.Database, cmd, ledger.WithPromRegistry(reg))
	if err != nil {
		return err
	}
	defer s.Close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	logger := opts.Logger(cmd.ErrOrStderr())
	logger.Info("serving ledger on "+ln.Addr().String(), "component", "serve")
	return serve(ctx, ln, newServer(s.dao, reg, logger), logger)
}

// serve runs handler on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "server failed", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "component", "serve")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "shutdown failed", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}

// server exposes one DAO over HTTP. Calls are serialized by the ledger.
type server struct {
	dao    *dao.DAO
	logger *slog.Logger
}

func newServer(d *dao.DAO, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	s := &server{dao: d, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	Action string    `json:"action"`
	As     string    `json:"as"`
	Flow   string    `json:"flow,omitempty"`
	Args   ir.Object `json:"args,omitempty"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	View string    `json:"view"`
	Args ir.Object `json:"args,omitempty"`
}

func (s *server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ir.Errorf(ir.CodeInvalidArgument, "invalid body: %v", err))
		return
	}
	from, err := dao.AccountAddress(req.As)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	rcpt, callErr := s.dao.Invoke(r.Context(), dao.Call{Flow: req.Flow, From: from, Action: req.Action, Args: req.Args})
	if callErr != nil && rcpt.CallID == "" {
		status := http.StatusInternalServerError
		if ir.IsCode(callErr, ir.CodeInvalidArgument) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, callErr)
		return
	}

	out := callOutput(s.dao, req.Action, rcpt, callErr)
	resp := CLIResponse{Status: "ok", Data: out}
	if callErr != nil {
		resp.Status = "error"
		resp.Error = cliErrorFor(callErr)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ir.Errorf(ir.CodeInvalidArgument, "invalid body: %v", err))
		return
	}
	height, err := s.dao.Ledger().Height(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	got, err := s.dao.Query(r.Context(), req.View, req.Args)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if ir.CodeOf(err) == ir.CodeInternal {
			status = http.StatusInternalServerError
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: ViewResult{View: req.View, Height: height, Result: got}})
}

// Health is the body of GET /healthz.
type Health struct {
	Height   int64 `json:"height"`
	Deployed bool  `json:"deployed"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	height, err := s.dao.Ledger().Height(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: Health{Height: height, Deployed: s.dao.Deployed()}})
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("request failed: %s", err), "component", "serve")
	}
	s.writeJSON(w, status, CLIResponse{Status: "error", Error: cliErrorFor(err)})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, resp CLIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
