// Package gateway provides the HTTP admin surface of tgcourier: health,
// Prometheus metrics, delivery status and authenticated send/edit endpoints
// in front of the shared Deliverer. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/delivery"
	"github.com/flemzord/tgcourier/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Service names resolved from the registry at Start.
const (
	channelService = "channel.telegram"
	statsService   = "stats.store"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Channel is what the gateway needs from the outbound channel module.
type Channel interface {
	Deliverer() *delivery.Deliverer
	DefaultMode() delivery.Mode
	HealthCheck(ctx context.Context) error
}

// StatsHistory serves persisted counter snapshots. It is optional; the
// history endpoint answers 404 when no stats module is loaded.
type StatsHistory interface {
	History(ctx context.Context, since time.Time, limit int) ([]delivery.StatsRecord, error)
	// Latest returns the newest snapshot; ok is false while none exists.
	Latest(ctx context.Context) (rec delivery.StatsRecord, ok bool, err error)
}

// Runtime reports on the modules loaded next to the gateway. The core App
// publishes it; without it /health checks the channel only.
type Runtime interface {
	CheckHealth(ctx context.Context) []core.ModuleHealth
	ModuleStatuses() []core.ModuleStatus
}

// Gateway is the HTTP gateway module. It is a leaf module; nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
	auditFile io.Closer
	addr      string
	startedAt time.Time

	// Resolved at Start() via the service registry.
	channel Channel
	history StatsHistory
	runtime Runtime
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "gateway.http",
		New:      func() core.Module { return &Gateway{} },
		Requires: []core.ModuleID{channelService},
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.limiter = security.NewRateLimiter(g.config.RateLimit)

	redactor := security.NewRedactor()
	redactor.AddLiteral(g.config.Auth.BearerToken)
	redactor.AddLiteral(g.config.Auth.BasicPass)

	auditCfg := security.AuditLoggerConfig{Redactor: redactor}
	if g.config.AuditLog != "" {
		f, err := os.OpenFile(g.config.AuditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("gateway: opening audit log: %w", err)
		}
		auditCfg.Writer = f
		g.auditFile = f
	}
	g.audit = security.NewAuditLogger(auditCfg)

	g.registry = prometheus.NewRegistry()
	g.requests = newRequestCounter()
	ctx.RegisterService("gateway.metrics", g.registry)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway: no auth configured, admin endpoints are disabled")
	}
	return nil
}

// Start implements core.Starter. It resolves the channel from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	ch, err := core.Service[Channel](g.appCtx, channelService)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.channel = ch
	if h, err := core.Service[StatsHistory](g.appCtx, statsService); err == nil {
		g.history = h
	}
	if rt, err := core.Service[Runtime](g.appCtx, core.AppService); err == nil {
		g.runtime = rt
	}

	if err := registerMetrics(g.registry, g.requests, ch.Deliverer().Stats); err != nil {
		return fmt.Errorf("gateway: registering metrics: %w", err)
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.addr = ln.Addr().String()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	var errs []error
	if g.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
		defer cancel()

		g.logger.Info("gateway shutting down")
		errs = append(errs, g.server.Shutdown(shutdownCtx))
	}
	if g.auditFile != nil {
		errs = append(errs, g.auditFile.Close())
	}
	return errors.Join(errs...)
}

// Addr returns the address the server listens on, once started.
func (g *Gateway) Addr() string { return g.addr }
