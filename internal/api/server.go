package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/audit"
	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/logging"
	"github.com/nerrad567/devicelabel-core/internal/inventory"
	"github.com/nerrad567/devicelabel-core/internal/matching"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultExportConcurrency bounds resolutions in flight for one export.
const defaultExportConcurrency = 4

// Syncer refreshes a connection's inventory. inventory.Syncer satisfies it.
type Syncer interface {
	Sync(ctx context.Context, connectionID string) (inventory.SyncResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Security  config.SecurityConfig
	Export    config.ExportConfig
	Logger    *logging.Logger
	Catalog   catalog.Repository
	Inventory inventory.Repository
	Resolver  *matching.Resolver
	Syncer    Syncer           // optional: POST /inventory/sync returns 503 without it
	Audit     audit.Repository // optional
	Version   string
}

// Server is the HTTP API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	exportCfg config.ExportConfig
	logger    *logging.Logger
	catalog   catalog.Repository
	inventory inventory.Repository
	resolver  *matching.Resolver
	syncer    Syncer
	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog
	version   string
	server    *http.Server
	cancel    context.CancelFunc // stops the audit writer on Close()
	auditDone chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory repository is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		exportCfg: deps.Export,
		logger:    deps.Logger,
		catalog:   deps.Catalog,
		inventory: deps.Inventory,
		resolver:  deps.Resolver,
		syncer:    deps.Syncer,
		auditRepo: deps.Audit,
		version:   deps.Version,
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.auditCh != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// flushes queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

func (s *Server) exportConcurrency() int {
	if s.exportCfg.Concurrency > 0 {
		return s.exportCfg.Concurrency
	}
	return defaultExportConcurrency
}
