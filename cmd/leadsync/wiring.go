package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amishk599/leadsync/internal/classifier"
	"github.com/amishk599/leadsync/internal/config"
	"github.com/amishk599/leadsync/internal/model"
	"github.com/amishk599/leadsync/internal/notifier"
	"github.com/amishk599/leadsync/internal/pipeline"
	"github.com/amishk599/leadsync/internal/ratelimit"
	"github.com/amishk599/leadsync/internal/retry"
	"github.com/amishk599/leadsync/internal/source"
	"github.com/amishk599/leadsync/internal/store"
)

// leadStore is what every store backend offers the commands.
type leadStore interface {
	model.LeadStore
	Close() error
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (leadStore, error) {
	if cfg.Sync.DryRun {
		logger.Info("dry-run mode enabled, nothing will be stored")
		return store.NewNopStore(), nil
	}
	switch cfg.Store.Driver {
	case "postgres":
		logger.Debug("using postgres store")
		return store.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		logger.Debug("using sqlite store", "path", cfg.Store.Path)
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

// buildSource wraps every enabled source in rate limiting and retry and
// combines them into one batch.
func buildSource(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.PostingSource, error) {
	limiter := ratelimit.NewKeyedLimiter(cfg.RateLimit.SourcesPerSecond, cfg.RateLimit.SourceBurst)
	policy := retry.Policy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay}

	var named []source.Named
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}

		var src model.PostingSource
		switch sc.Type {
		case "file":
			// Local files need neither throttling nor retries.
			named = append(named, source.Named{Name: sc.Name, Source: source.NewFileSource(sc.Path, logger)})
			logger.Info("registered source", "name", sc.Name, "type", sc.Type)
			continue
		case "http":
			src = source.NewHTTPSource(sc.URL, sc.Headers, httpClient, logger)
			src = ratelimit.NewSource(src, limiter, hostKey(sc.URL))
		case "greenhouse":
			src = source.NewGreenhouseSource(source.GreenhouseBaseURL, sc.BoardToken, sc.Company, httpClient, logger)
			src = ratelimit.NewSource(src, limiter, "greenhouse")
		case "lever":
			src = source.NewLeverSource(source.LeverBaseURL, sc.BoardToken, sc.Company, httpClient, logger)
			src = ratelimit.NewSource(src, limiter, "lever")
		case "ashby":
			src = source.NewAshbySource(source.AshbyBaseURL, sc.BoardToken, sc.Company, httpClient, logger)
			src = ratelimit.NewSource(src, limiter, "ashby")
		case "gem":
			src = source.NewGemSource(source.GemBaseURL, sc.BoardToken, sc.Company, httpClient, logger)
			src = ratelimit.NewSource(src, limiter, "gem")
		default:
			return nil, fmt.Errorf("source %q: unknown type %q", sc.Name, sc.Type)
		}

		src = retry.NewSource(src, policy, logger)
		named = append(named, source.Named{Name: sc.Name, Source: src})
		logger.Info("registered source", "name", sc.Name, "type", sc.Type)
	}
	if len(named) == 0 {
		return nil, fmt.Errorf("no enabled sources")
	}
	return source.NewMultiSource(named, logger), nil
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

func buildClassifier(cfg *config.Config, logger *slog.Logger) model.Classifier {
	cc := cfg.Classifier
	if cc.Type == "rules" {
		logger.Info("using keyword rule classifier")
		return classifier.NewRuleClassifier(cc.Keywords, cc.ExcludedCompanies)
	}

	httpClient := &http.Client{Timeout: cc.Timeout}
	var provider classifier.LLMProvider
	switch cc.Type {
	case "openai":
		provider = classifier.NewOpenAIProvider(cc.BaseURL, cc.APIKey, cc.Model, httpClient)
	default:
		provider = classifier.NewGeminiProvider(cc.BaseURL, cc.APIKey, cc.Model, httpClient)
	}
	logger.Info("using LLM classifier", "provider", cc.Type, "model", cc.Model)

	var c model.Classifier = classifier.NewLLMClassifier(provider, classifier.EligibilityTemplate, cc.ExcludedCompanies, logger)
	if rpm := cfg.RateLimit.ClassifierPerMinute; rpm > 0 {
		limiter := ratelimit.NewKeyedLimiter(rpm/60, cfg.RateLimit.ClassifierBurst)
		c = ratelimit.NewClassifier(c, limiter, cc.Type)
	}
	return retry.NewClassifier(c, retry.Policy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay}, logger)
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	nc := cfg.Notification
	var notifiers []model.Notifier
	for _, ch := range nc.Channels {
		switch ch {
		case "slack":
			logger.Info("using slack notifier")
			notifiers = append(notifiers, notifier.NewSlackNotifier(nc.WebhookURL, nc.DashboardURL, httpClient, logger))
		case "resend":
			logger.Info("using resend email notifier", "recipients", len(nc.Resend.To))
			notifiers = append(notifiers, notifier.NewResendNotifier(notifier.ResendConfig{
				BaseURL:      nc.Resend.BaseURL,
				APIKey:       nc.Resend.APIKey,
				From:         nc.Resend.From,
				To:           nc.Resend.To,
				DashboardURL: nc.DashboardURL,
			}, httpClient, logger))
		default:
			notifiers = append(notifiers, notifier.NewLogNotifier(logger))
		}
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return notifier.NewMultiNotifier(notifiers, logger)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// buildOrchestrator assembles a sync pipeline over repo. observer may be nil.
func buildOrchestrator(cfg *config.Config, repo model.Repository, observer pipeline.RunObserver, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	httpClient := newHTTPClient()
	src, err := buildSource(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{
		Threshold: cfg.Sync.Threshold,
		Workers:   cfg.Sync.Workers,
		Observer:  observer,
	}
	if cfg.Sync.LockFile != "" {
		opts.Lock = pipeline.NewFileLock(cfg.Sync.LockFile)
	}

	return pipeline.NewOrchestrator(
		src,
		buildClassifier(cfg, logger),
		repo,
		setupNotifier(cfg, httpClient, logger),
		opts,
		logger,
	), nil
}
