// Package app provides the shared entry point for the tgcourier binary:
// configuration discovery, the process logger and module loading.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/tgcourier/internal/config"
	"github.com/flemzord/tgcourier/internal/core"
	"github.com/flemzord/tgcourier/internal/reload"
	"github.com/flemzord/tgcourier/internal/security"
)

// channelModule is the module every configuration must enable.
const channelModule = "channel.telegram"

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// DataDir overrides both the config's data_dir and the default.
	DataDir string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// WatchInterval is how often Run polls the config file for changes.
	// Zero uses the watcher default; negative disables watching.
	WatchInterval time.Duration
}

// Env is a loaded configuration with the logger and module context
// built from it.
type Env struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Redactor   *security.Redactor
	AppCtx     *core.AppContext
}

// Prepare resolves, loads and validates the configuration and builds the
// redacting logger and the AppContext. No module is loaded yet.
func Prepare(params RunParams) (*Env, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg, channelModule); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	for _, secret := range cfg.Secrets {
		redactor.AddLiteral(secret)
	}
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := NewLogger(cfg.Log, out, redactor)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("config.path", cfgPath)

	return &Env{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		Redactor:   redactor,
		AppCtx:     appCtx,
	}, nil
}

// Load instantiates, provisions and validates the given modules. Pass nil
// to load every configured module.
func (e *Env) Load(ids []string) (*core.App, error) {
	if ids == nil {
		resolved, err := config.Resolve(e.Config)
		if err != nil {
			return nil, err
		}
		ids = resolved
	}
	application := core.NewApp(e.AppCtx)
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}
	return application, nil
}

// Run loads configuration, starts all modules, and blocks until ctx is
// canceled or SIGINT/SIGTERM is received. SIGHUP and config file changes
// trigger a live reload for modules that implement core.Reloader.
func Run(ctx context.Context, params RunParams) error {
	env, err := Prepare(params)
	if err != nil {
		return err
	}

	application, err := env.Load(nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.Logger.Info("tgcourier starting", "config", env.ConfigPath, "data_dir", env.AppCtx.DataDir)
	if err := application.Start(); err != nil {
		return err
	}

	handler := reload.NewHandler(application, env.Logger, env.AppCtx.DataDir, channelModule)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var changes <-chan reload.Event
	if params.WatchInterval >= 0 {
		watcher := reload.NewWatcher(reload.WatcherConfig{
			ConfigPath:   env.ConfigPath,
			PollInterval: params.WatchInterval,
		})
		watcher.Start(ctx)
		defer watcher.Stop()
		changes = watcher.Events()
	}

	for {
		select {
		case <-ctx.Done():
			env.Logger.Info("shutdown requested", "cause", context.Cause(ctx))
			application.Stop()
			env.Logger.Info("shutdown complete")
			return nil
		case <-hup:
			env.Logger.Info("SIGHUP received, reloading configuration")
			if err := handler.HandleReload(ctx, env.ConfigPath); err != nil {
				env.Logger.Error("reload failed", "error", err)
			}
		case evt := <-changes:
			env.Logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := handler.HandleReload(ctx, evt.ConfigPath); err != nil {
				env.Logger.Error("reload failed", "error", err)
			}
		}
	}
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/tgcourier/tgcourier.yaml → ~/.config/tgcourier/tgcourier.yaml → ./tgcourier.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "tgcourier", "tgcourier.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tgcourier", "tgcourier.yaml"))
	}

	candidates = append(candidates, "tgcourier.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/tgcourier if set, otherwise ~/.local/share/tgcourier.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "tgcourier")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tgcourier")
}
