package main

import (
	"flag"
	"os"

	"github.com/RiosWesley/whatsapp-mkauth/internal/daemon"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	configFlag := flag.String("config", os.Getenv("ZAP_CONFIG"), "path to a TOML config file (optional)")
	envFlag := flag.String("env-file", ".env", "path to a .env file (ignored when missing)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{ConfigPath: *configFlag, EnvFile: *envFlag}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
	)

	app.Run()
}
