// Command voicebot answers Telegram voice messages: the audio is
// transcribed by Amazon Transcribe and the transcript is answered by a
// completion model.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kbukum/voicebot/awsclient"
	"github.com/kbukum/voicebot/bootstrap"
	"github.com/kbukum/voicebot/config"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/observability"
	"github.com/kbukum/voicebot/redis"
	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/version"

	_ "github.com/kbukum/voicebot/llm/ollama"
	_ "github.com/kbukum/voicebot/llm/openai"
	_ "github.com/kbukum/voicebot/storage/local"
	_ "github.com/kbukum/voicebot/storage/s3"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "voicebot: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg,
		config.WithDefaults(defaults()),
		config.WithEnvAliases(envAliases),
	); err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().String()
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}

	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("aws: %w", err)
	}

	infra := &infrastructure{
		telemetry: observability.NewComponent(cfg.Telemetry, cfg.Name, cfg.Version, cfg.Environment),
		storage:   storage.NewComponent(cfg.Storage, awsCfg, app.Logger.WithComponent("storage")),
		awsCfg:    awsCfg,
	}
	if cfg.Redis.Enabled {
		infra.redis = redis.NewComponent(cfg.Redis, app.Logger)
	}
	for _, c := range infra.components() {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*AppConfig]) error {
		return wire(ctx, a, infra)
	})

	if err := app.Run(ctx); err != nil {
		app.Logger.Error("voicebot stopped with error", map[string]interface{}{logger.FieldError: err.Error()})
		return err
	}
	return nil
}
