package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/infrastructure/httpapi"
	"SocialPoster/internal/infrastructure/llm"
	"SocialPoster/internal/infrastructure/publisher"
	"SocialPoster/internal/infrastructure/scheduler"
	"SocialPoster/internal/infrastructure/storage"
	"SocialPoster/internal/logging"
	"SocialPoster/internal/pipeline"
	"SocialPoster/internal/ports"
	"SocialPoster/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	repo      ports.Repository
	closeRepo func() error
	scheduler *scheduler.CronScheduler
	pipeline  *usecase.Orchestrator
	trigger   *usecase.Trigger
	server    *httpapi.Server
}

// New opens storage and builds every component. Close releases the storage.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, closeRepo: func() error { return nil }}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	a.pipeline = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Repository: a.repo,
		Fetcher: pipeline.NewFeedFetcher(nil, pipeline.FetcherConfig{
			MaxWorkers: cfg.Pipeline.MaxFeedWorkers,
			Timeout:    cfg.Pipeline.FeedTimeout,
			Attempts:   cfg.Pipeline.FeedRetries,
			RetryDelay: cfg.Pipeline.FeedRetryDelay,
		}, baseLogger),
		Resolver:   pipeline.NewURLResolver(nil, cfg.Pipeline.IndirectionDomains, baseLogger),
		Extractor:  pipeline.NewContentExtractor(nil, pipeline.ExtractorConfig{Timeout: cfg.Pipeline.ExtractTimeout, MaxChars: cfg.Pipeline.MaxContentChars}, baseLogger),
		Generator:  a.buildGenerator(),
		Dispatcher: pipeline.NewDispatcher(a.buildPublishers(), baseLogger),
		Config: usecase.OrchestratorConfig{
			MinQualityScore: cfg.Pipeline.MinQualityScore,
			ShortLimit:      cfg.Pipeline.ShortPostLimit,
			DedupBatchSize:  cfg.Pipeline.DedupBatchSize,
			Validation:      validationRules(cfg.Pipeline),
		},
		Logger: baseLogger,
	})

	var sched ports.Scheduler
	if !cfg.Server.Serverless {
		a.scheduler = scheduler.NewCronScheduler(cfg.Scheduler.Location(), func(projectID string, platforms []domain.Platform) {
			a.trigger.Scheduled(projectID, platforms)
		}, baseLogger)
		sched = a.scheduler
	}

	a.trigger = usecase.NewTrigger(usecase.TriggerDeps{
		Orchestrator: a.pipeline,
		Repository:   a.repo,
		Scheduler:    sched,
		Async:        cfg.Server.Async && !cfg.Server.Serverless,
		StuckTimeout: cfg.Pipeline.StuckRunTimeout,
		Location:     cfg.Scheduler.Location(),
		Logger:       baseLogger,
	})

	a.server = httpapi.New(httpapi.ServerDeps{
		Runner:     a.trigger,
		Repository: a.repo,
		Scheduler:  sched,
		CronSecret: cfg.Server.CronSecret,
		PublicURL:  cfg.Server.PublicURL,
		Logger:     baseLogger,
	})
	return a, nil
}

func validationRules(p config.PipelineConfig) pipeline.ValidationRules {
	v := p.Validation
	return pipeline.ValidationRules{
		MinLongChars:    v.MinLongChars,
		MinShortChars:   v.MinShortChars,
		MinLongWords:    v.MinLongWords,
		SoftMaxWords:    v.SoftMaxWords,
		MaxLongChars:    v.MaxLongChars,
		ShortLimit:      p.ShortPostLimit,
		MaxForeignChars: v.MaxForeignChars,
	}
}

func (a *Application) openStorage(ctx context.Context) error {
	if a.cfg.Database.Driver == "memory" {
		a.repo = storage.NewMemoryRepository()
		return nil
	}
	dialect, err := storage.ParseDialect(a.cfg.Database.Driver)
	if err != nil {
		return err
	}
	db, err := storage.Open(ctx, dialect, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	repo := storage.NewSQLRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	a.repo = repo
	a.closeRepo = repo.Close
	return nil
}

func (a *Application) buildGenerator() *pipeline.Generator {
	ai := a.cfg.AI
	if ai.APIKey == "" {
		a.logger.Warn("ai api key not configured, posts will use templates")
		return nil
	}
	var client ports.CompletionClient
	switch ai.Provider {
	case config.ProviderAnthropic:
		client = llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: ai.APIKey, MaxTokens: ai.MaxTokens, Temperature: ai.Temperature})
	default:
		client = llm.NewOpenAIClient(llm.OpenAIConfig{
			Endpoint:    ai.Endpoint,
			APIKey:      ai.APIKey,
			Timeout:     ai.RequestTimeout,
			MaxTokens:   ai.MaxTokens,
			Temperature: ai.Temperature,
		})
	}
	return pipeline.NewGenerator(client, pipeline.GeneratorConfig{
		PrimaryModel:        ai.PrimaryModel,
		FallbackModels:      ai.FallbackModels,
		TotalBudget:         ai.TotalBudget,
		MaxRateLimitRetries: ai.MaxRateLimitRetries,
		RetryBaseDelay:      ai.RetryBaseDelay,
		MinResponseChars:    ai.MinResponseChars,
	}, a.logger)
}

func (a *Application) buildPublishers() *publisher.Registry {
	p := a.cfg.Publishers
	return publisher.NewRegistry(
		publisher.NewLinkedIn(publisher.LinkedInConfig{APIBase: p.LinkedIn.APIBase, Version: p.LinkedIn.Version}),
		publisher.NewTwitter(publisher.TwitterConfig{APIBase: p.Twitter.APIBase}),
		publisher.NewTelegram(publisher.TelegramConfig{APIBase: p.Telegram.APIBase, BotToken: p.Telegram.BotToken}),
	)
}

// Seed stores configured projects that are missing from the repository.
func (a *Application) Seed(ctx context.Context) (int, error) {
	seeds := make([]storage.SeedProject, 0, len(a.cfg.Projects))
	for _, pc := range a.cfg.Projects {
		project, profiles, err := pc.ToDomain()
		if err != nil {
			return 0, err
		}
		seeds = append(seeds, storage.SeedProject{Project: project, Profiles: profiles})
	}
	return storage.Seed(ctx, a.repo, seeds, a.logger)
}

// Serve seeds projects, starts the scheduler and serves HTTP until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if _, err := a.Seed(ctx); err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}
	if err := a.trigger.Start(ctx); err != nil {
		return err
	}
	serveErr := a.server.Start(ctx, a.cfg.Server.Addr)

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	if err := a.trigger.Stop(stopCtx); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}
	return serveErr
}

// RunOnce executes one pipeline run synchronously, as the manual trigger would.
func (a *Application) RunOnce(ctx context.Context, projectID string, platforms []domain.Platform) (domain.PipelineRun, error) {
	if _, err := a.Seed(ctx); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("seed projects: %w", err)
	}
	if _, err := a.trigger.ReapStuckRuns(ctx); err != nil {
		a.logger.Warn("reaping stuck runs failed", "error", err)
	}
	return a.pipeline.Run(ctx, projectID, domain.TriggerManual, platforms)
}

// Jobs registers the stored schedules and describes the resulting jobs.
func (a *Application) Jobs(ctx context.Context) ([]ports.JobInfo, error) {
	if a.scheduler == nil {
		return nil, fmt.Errorf("scheduler disabled in serverless mode")
	}
	if _, err := a.Seed(ctx); err != nil {
		return nil, fmt.Errorf("seed projects: %w", err)
	}
	if err := a.trigger.SyncSchedules(ctx); err != nil {
		return nil, err
	}
	return a.scheduler.ListJobs(), nil
}

// Close releases the storage backend.
func (a *Application) Close() error {
	return a.closeRepo()
}
