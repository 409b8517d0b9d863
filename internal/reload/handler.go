package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/tgcourier/internal/config"
	"github.com/flemzord/tgcourier/internal/core"
)

// Handler reloads application configuration and notifies modules.
type Handler struct {
	app      *core.App
	logger   *slog.Logger
	dataDir  string
	required []string
}

// NewHandler creates a reload handler. required lists the module IDs the
// new configuration must still contain.
func NewHandler(app *core.App, logger *slog.Logger, dataDir string, required ...string) *Handler {
	return &Handler{
		app:      app,
		logger:   logger,
		dataDir:  dataDir,
		required: required,
	}
}

// HandleReload loads a fresh config from disk, validates it, and calls Reload
// on all modules that implement core.Reloader. An invalid file leaves the
// running configuration untouched.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg, h.required...); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	appCtx := core.NewAppContext(h.logger, h.dataDir).WithModuleConfigs(cfg.Modules)
	if err := h.app.ReloadModules(appCtx); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.logger.Info("configuration reloaded successfully")
	return nil
}
