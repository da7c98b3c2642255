package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/RiosWesley/whatsapp-mkauth/internal/audit"
	"github.com/RiosWesley/whatsapp-mkauth/internal/auth"
	"github.com/RiosWesley/whatsapp-mkauth/internal/bus"
	"github.com/RiosWesley/whatsapp-mkauth/internal/config"
	"github.com/RiosWesley/whatsapp-mkauth/internal/dispatch"
	"github.com/RiosWesley/whatsapp-mkauth/internal/httpapi"
	"github.com/RiosWesley/whatsapp-mkauth/internal/lock"
	"github.com/RiosWesley/whatsapp-mkauth/internal/logging"
	"github.com/RiosWesley/whatsapp-mkauth/internal/media"
	"github.com/RiosWesley/whatsapp-mkauth/internal/observability"
	"github.com/RiosWesley/whatsapp-mkauth/internal/session"
	"github.com/RiosWesley/whatsapp-mkauth/internal/status"
	"github.com/RiosWesley/whatsapp-mkauth/internal/supervisor"
	"github.com/RiosWesley/whatsapp-mkauth/internal/tracker"
	"github.com/RiosWesley/whatsapp-mkauth/internal/wa"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Params locates the configuration sources passed to the fx module.
type Params struct {
	ConfigPath string
	EnvFile    string // empty = ".env"
}

// Module returns the fx module for the gateway, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			providePaths,
			provideLock,
			provideTracker,
			provideAudit,
			provideAdapter,
			provideSupervisor,
			provideResolver,
			provideCoordinator,
			provideAuthenticator,
			provideRegistry,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	envFile := p.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	return config.Load(config.Options{File: p.ConfigPath, EnvFile: envFile})
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Dir:     cfg.LogDir,
		Level:   cfg.LogLevel,
		Service: cfg.ServiceName,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine() *status.Machine {
	return status.NewMachine()
}

func providePaths(cfg *config.Config) session.Paths {
	return session.Paths{DataDir: cfg.DataDir, SessionDB: cfg.SessionDB}
}

func provideLock(paths session.Paths, logger *zap.Logger) (*lock.Lock, error) {
	if err := paths.EnsureDir(); err != nil {
		return nil, err
	}
	logger.Info("acquiring data dir lock", zap.String("dir", paths.Dir()))
	l, err := lock.Acquire(paths.Dir())
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideTracker(cfg *config.Config) *tracker.Tracker {
	if cfg.AckMonotonic {
		return tracker.New(tracker.WithMonotonicAcks())
	}
	return tracker.New()
}

func provideAudit(cfg *config.Config, logger *zap.Logger) *audit.Logger {
	return audit.New(cfg.LogDir, logger)
}

// provideAdapter takes the lock so the device store is never opened by two
// processes.
func provideAdapter(cfg *config.Config, paths session.Paths, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), paths.SessionDBPath(), cfg.DeviceName, b, logger)
}

func provideSupervisor(cfg *config.Config, adapter *wa.Adapter, m *status.Machine, b *bus.Bus, t *tracker.Tracker, a *audit.Logger, logger *zap.Logger) *supervisor.Supervisor {
	return supervisor.New(adapter, m, b, t, a, logger, supervisor.Options{
		RestartDelay:    cfg.RestartDelay,
		RestartMaxDelay: cfg.RestartMaxDelay,
		MaxAttempts:     cfg.RestartMaxAttempts,
		WatchdogTimeout: cfg.WatchdogTimeout,
		OnPairingCode:   printPairingCode(logger),
	})
}

func printPairingCode(logger *zap.Logger) func(string) {
	return func(code string) {
		art, err := wa.RenderQR(code)
		if err != nil {
			logger.Warn("render pairing code", zap.Error(err))
			return
		}
		fmt.Fprintf(os.Stderr, "\nScan this QR code with WhatsApp on the billing phone:\n%s\n", art)
	}
}

func provideResolver(cfg *config.Config) *media.Resolver {
	return media.NewResolver(media.NewHTTPFetcher(media.FetcherOptions{
		Timeout:  cfg.MediaFetchTimeout,
		MaxBytes: cfg.MediaMaxBytes,
	}))
}

func provideCoordinator(cfg *config.Config, adapter *wa.Adapter, sup *supervisor.Supervisor, r *media.Resolver, t *tracker.Tracker, a *audit.Logger, logger *zap.Logger) *dispatch.Coordinator {
	opts := dispatch.Options{SendTimeout: cfg.SendTimeout}
	if cfg.SendRate > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst)
	}
	return dispatch.New(adapter, sup, r, t, a, logger, opts)
}

func provideAuthenticator(cfg *config.Config, logger *zap.Logger) *auth.Authenticator {
	a := auth.New(auth.Credentials{Account: cfg.AuthAccount, Password: cfg.AuthPassword})
	if !a.Enabled() {
		logger.Warn("no credentials configured, send endpoints are open")
	}
	return a
}

func provideRegistry(b *bus.Bus) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.Register(reg, b)
	return reg
}

func provideHandler(cfg *config.Config, c *dispatch.Coordinator, sup *supervisor.Supervisor, t *tracker.Tracker, a *auth.Authenticator, al *audit.Logger, reg *prometheus.Registry, logger *zap.Logger) http.Handler {
	return httpapi.NewHandler(&httpapi.API{
		Dispatch:     c,
		Sessions:     sup,
		Tracker:      t,
		Auth:         a,
		Audit:        al,
		Logger:       logger,
		Service:      cfg.ServiceName,
		LogDir:       cfg.LogDir,
		MaxBodyBytes: cfg.MaxBodyBytes,
		NewCaptureID: func() string { return ulid.Make().String() },
	}, reg)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, sup *supervisor.Supervisor, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()
			sup.Start(ctx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("error stopping HTTP server", zap.Error(err))
			}
			if err := sup.Stop(ctx); err != nil {
				logger.Warn("error destroying WhatsApp client", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("gateway stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
