package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/kbukum/voicebot/bootstrap"
	"github.com/kbukum/voicebot/component"
	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/httpclient"
	"github.com/kbukum/voicebot/llm"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/observability"
	"github.com/kbukum/voicebot/pipeline"
	"github.com/kbukum/voicebot/provider"
	"github.com/kbukum/voicebot/redis"
	"github.com/kbukum/voicebot/server"
	"github.com/kbukum/voicebot/speech/polly"
	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/telegram"
	"github.com/kbukum/voicebot/transcription"
	"github.com/kbukum/voicebot/transcription/awstranscribe"
)

var _ pipeline.Slot = (*redis.SlotLock)(nil)

// infrastructure holds the components started before wiring.
type infrastructure struct {
	telemetry *observability.Component
	redis     *redis.Component
	storage   *storage.Component
	awsCfg    aws.Config
}

func (i *infrastructure) components() []component.Component {
	out := []component.Component{i.telemetry}
	if i.redis != nil {
		out = append(out, i.redis)
	}
	return append(out, i.storage)
}

// wire builds the pipeline on top of started infrastructure and registers
// the components that deliver updates to it.
func wire(_ context.Context, a *bootstrap.App[*AppConfig], infra *infrastructure) error {
	cfg := a.Cfg
	log := a.Logger

	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return err
	}

	backend := awstranscribe.New(infra.awsCfg, cfg.Transcribe)
	registry := transcription.NewRegistry(backend, cfg.Transcription, log)
	poller := transcription.NewPoller(registry, cfg.Transcription,
		transcription.WithLogger(log),
		transcription.WithDoneHook(func(ctx context.Context, attempts int, err error) {
			metrics.RecordPollAttempts(ctx, attempts, outcome(err))
		}),
	)

	artifacts, err := httpclient.New(httpclient.Config{Name: "transcript", Timeout: cfg.Transcription.PollInterval * 6})
	if err != nil {
		return err
	}
	fetcher := transcription.NewFetcher(artifacts, infra.storage.Store(), cfg.Transcription.MaxResultBytes)

	completer, err := newCompleter(cfg, log, metrics)
	if err != nil {
		return err
	}

	tg, err := telegram.NewClient(cfg.Telegram)
	if err != nil {
		return err
	}
	downloads, err := httpclient.New(httpclient.Config{Name: "telegram-files", Timeout: cfg.Telegram.Timeout})
	if err != nil {
		return err
	}

	deps := pipeline.Deps{
		Source:    pipeline.NewHTTPSource(downloads),
		Store:     infra.storage.Store(),
		Registry:  registry,
		Poller:    poller,
		Fetcher:   fetcher,
		Completer: completer,
		Slot:      newSlot(cfg, infra, registry.JobName(), log),
		Metrics:   metrics,
	}
	if cfg.Speech.Enabled {
		speaker, err := polly.New(infra.awsCfg, cfg.Speech)
		if err != nil {
			return err
		}
		deps.Speaker = speaker
	}

	orch, err := pipeline.New(cfg.Pipeline, deps, log)
	if err != nil {
		return err
	}
	dispatcher := telegram.NewDispatcher(tg, orch, cfg.Telegram, log)

	var webhook *telegram.Webhook
	switch cfg.Telegram.Mode {
	case telegram.ModeWebhook:
		webhook = telegram.NewWebhook(tg, dispatcher, cfg.Telegram, log)
		if err := a.RegisterComponent(webhook); err != nil {
			return err
		}
	default:
		if err := a.RegisterComponent(telegram.NewPoller(tg, dispatcher, log)); err != nil {
			return err
		}
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, log)
		srv.ApplyDefaults(cfg.Name, a.Components.HealthAll, metrics)
		if webhook != nil {
			srv.Engine().POST(telegram.DefaultWebhookPath, webhook.Handler())
		}
		// registered last so it stops first and no update lands on a
		// draining dispatcher
		if err := a.RegisterComponent(server.NewComponent(srv)); err != nil {
			return err
		}
	}

	log.Info("pipeline wired", map[string]interface{}{
		logger.FieldJobName: registry.JobName(),
		"slot":              cfg.Slot.Backend,
		"telegram_mode":     cfg.Telegram.Mode,
		"llm":               fmt.Sprintf("%s/%s", cfg.LLM.Dialect, cfg.LLM.Model),
		"speech":            cfg.Speech.Enabled,
	})
	return nil
}

// newCompleter wraps the completion adapter with tracing, logging and
// metrics. It is never retried.
func newCompleter(cfg *AppConfig, log *logger.Logger, metrics *observability.Metrics) (*llm.ProviderCompleter, error) {
	adapter, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	wrapped := provider.Chain(
		provider.WithTracing[llm.CompletionRequest, llm.CompletionResponse](cfg.Name),
		provider.WithLogging[llm.CompletionRequest, llm.CompletionResponse](log),
		provider.WithMetrics[llm.CompletionRequest, llm.CompletionResponse](metrics),
	)(adapter)
	return llm.NewCompleter(wrapped), nil
}

// newSlot picks the slot guarding the fixed job name.
func newSlot(cfg *AppConfig, infra *infrastructure, jobName string, log *logger.Logger) pipeline.Slot {
	if cfg.Slot.Backend == SlotRedis && infra.redis != nil {
		client := infra.redis.Client()
		return redis.NewSlotLock(client.Unwrap(), client.Key("slot:"+jobName), redis.LockConfig{
			TTL:     cfg.Slot.TTL,
			MaxWait: cfg.Slot.MaxWait,
			Refresh: true,
		}, log)
	}
	return pipeline.NewLocalSlot(jobName, cfg.Slot.MaxWait)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errors.Code(err); code != "" {
		return string(code)
	}
	return "error"
}
