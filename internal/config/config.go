package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"SocialPoster/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	defaultConfigPath = "config.yaml"
	configPathEnv     = "SOCIALPOSTER_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	aiProviderEnv     = "AI_PROVIDER"
	aiAPIKeyEnv       = "AI_API_KEY"
	aiEndpointEnv     = "AI_ENDPOINT"
	aiPrimaryModelEnv = "AI_PRIMARY_MODEL"
	aiFallbackEnv     = "AI_FALLBACK_MODELS"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	serverAddrEnv     = "SERVER_ADDR"
	cronSecretEnv     = "CRON_SECRET"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	serverlessEnv     = "SERVERLESS"
)

const (
	minContentChars   = 500
	minShortPostLimit = 50
	maxShortPostLimit = 280
)

// Providers accepted in ai.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	AI         AIConfig         `yaml:"ai"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Publishers PublishersConfig `yaml:"publishers"`
	Projects   []ProjectConfig  `yaml:"projects"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	PublicURL  string `yaml:"publicUrl"`
	CronSecret string `yaml:"cronSecret"`
	// Async runs manual triggers in the background.
	Async bool `yaml:"async"`
	// Serverless disables the resident scheduler; runs come from /api/cron.
	Serverless bool `yaml:"serverless"`
}

// DatabaseConfig picks the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AIConfig describes the completion provider and the model chain.
type AIConfig struct {
	Provider            string        `yaml:"provider"`
	Endpoint            string        `yaml:"endpoint"`
	APIKey              string        `yaml:"apiKey"`
	PrimaryModel        string        `yaml:"primaryModel"`
	FallbackModels      []string      `yaml:"fallbackModels"`
	TotalBudget         time.Duration `yaml:"totalBudget"`
	RequestTimeout      time.Duration `yaml:"requestTimeout"`
	MaxRateLimitRetries int           `yaml:"maxRateLimitRetries"`
	RetryBaseDelay      time.Duration `yaml:"retryBaseDelay"`
	MinResponseChars    int           `yaml:"minResponseChars"`
	MaxTokens           int           `yaml:"maxTokens"`
	Temperature         float64       `yaml:"temperature"`
}

// PipelineConfig tunes fetching, extraction and validation.
type PipelineConfig struct {
	MaxFeedWorkers     int              `yaml:"maxFeedWorkers"`
	FeedTimeout        time.Duration    `yaml:"feedTimeout"`
	FeedRetries        int              `yaml:"feedRetries"`
	FeedRetryDelay     time.Duration    `yaml:"feedRetryDelay"`
	ExtractTimeout     time.Duration    `yaml:"extractTimeout"`
	MaxContentChars    int              `yaml:"maxContentChars"`
	MinQualityScore    float64          `yaml:"minQualityScore"`
	ShortPostLimit     int              `yaml:"shortPostLimit"`
	StuckRunTimeout    time.Duration    `yaml:"stuckRunTimeout"`
	IndirectionDomains []string         `yaml:"indirectionDomains"`
	DedupBatchSize     int              `yaml:"dedupBatchSize"`
	Validation         ValidationConfig `yaml:"validation"`
}

// ValidationConfig holds the length and word limits applied to generated posts.
type ValidationConfig struct {
	MinLongChars    int `yaml:"minLongChars"`
	MinShortChars   int `yaml:"minShortChars"`
	MinLongWords    int `yaml:"minLongWords"`
	SoftMaxWords    int `yaml:"softMaxWords"`
	MaxLongChars    int `yaml:"maxLongChars"`
	MaxForeignChars int `yaml:"maxForeignChars"`
}

// SchedulerConfig defines the timezone cron expressions are evaluated in.
type SchedulerConfig struct {
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PublishersConfig holds platform API endpoints and shared credentials.
type PublishersConfig struct {
	LinkedIn LinkedInConfig `yaml:"linkedin"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// LinkedInConfig points at the LinkedIn REST API.
type LinkedInConfig struct {
	APIBase string `yaml:"apiBase"`
	Version string `yaml:"version"`
}

// TwitterConfig points at the X API v2.
type TwitterConfig struct {
	APIBase string `yaml:"apiBase"`
}

// TelegramConfig wires the bot used for channel posts.
type TelegramConfig struct {
	APIBase  string `yaml:"apiBase"`
	BotToken string `yaml:"botToken"`
}

// ProjectConfig is one seeded tenant.
type ProjectConfig struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"displayName"`
	Description string   `yaml:"description"`
	BrandVoice  string   `yaml:"brandVoice"`
	Hashtags    []string `yaml:"hashtags"`
	Feeds       []string `yaml:"feeds"`
	// Schedule is a cron expression or a JSON array of {cron, platforms}.
	Schedule         string               `yaml:"schedule"`
	Scoring          domain.ScoringConfig `yaml:"scoring"`
	Templates        domain.TemplateSet   `yaml:"templates"`
	Platforms        domain.PlatformFlags `yaml:"platforms"`
	QualityThreshold float64              `yaml:"qualityThreshold"`
	Active           *bool                `yaml:"active"`
	Profiles         []ProfileConfig      `yaml:"profiles"`
}

// ProfileConfig is a publish target seeded with its project.
type ProfileConfig struct {
	Platform       domain.Platform    `yaml:"platform"`
	AccountType    domain.AccountType `yaml:"accountType"`
	DisplayName    string             `yaml:"displayName"`
	AccessToken    string             `yaml:"accessToken"`
	PlatformUserID string             `yaml:"platformUserId"`
	Active         *bool              `yaml:"active"`
}

// ToDomain converts the project and its profiles. Profiles whose active flag
// is unset are active when they carry credentials.
func (p ProjectConfig) ToDomain() (domain.Project, []domain.Profile, error) {
	schedule, err := domain.ParseSchedule(p.Schedule)
	if err != nil {
		return domain.Project{}, nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	project := domain.Project{
		ID:               p.ID,
		DisplayName:      p.DisplayName,
		Description:      p.Description,
		BrandVoice:       p.BrandVoice,
		Hashtags:         p.Hashtags,
		Feeds:            p.Feeds,
		Scoring:          p.Scoring.WithDefaults(),
		Templates:        p.Templates,
		Schedule:         schedule,
		Platforms:        p.Platforms,
		QualityThreshold: p.QualityThreshold,
		Active:           p.Active == nil || *p.Active,
	}

	profiles := make([]domain.Profile, 0, len(p.Profiles))
	for _, pc := range p.Profiles {
		account := pc.AccountType
		if account == "" {
			account = domain.AccountPersonal
		}
		active := pc.AccessToken != "" || (pc.Platform == domain.PlatformTelegram && pc.PlatformUserID != "")
		if pc.Active != nil {
			active = *pc.Active
		}
		profiles = append(profiles, domain.Profile{
			ProjectID:      p.ID,
			Platform:       pc.Platform,
			AccountType:    account,
			DisplayName:    pc.DisplayName,
			AccessToken:    pc.AccessToken,
			PlatformUserID: pc.PlatformUserID,
			Active:         active,
		})
	}
	return project, profiles, nil
}

// Validate rejects project definitions the pipeline cannot run.
func (p ProjectConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		errs = append(errs, errors.New("displayName is required"))
	}
	if strings.TrimSpace(p.BrandVoice) == "" {
		errs = append(errs, errors.New("brandVoice is required"))
	}
	if len(p.Feeds) == 0 {
		errs = append(errs, errors.New("at least one feed is required"))
	}
	for _, feed := range p.Feeds {
		u, err := url.Parse(feed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("feed %q is not an http(s) url", feed))
		}
	}
	if err := p.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}
	schedule, err := domain.ParseSchedule(p.Schedule)
	if err != nil {
		errs = append(errs, err)
	}
	for _, entry := range schedule {
		if _, err := cron.ParseStandard(entry.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule %q: %w", entry.Cron, err))
		}
	}
	for _, pc := range p.Profiles {
		if _, err := domain.ParsePlatforms(string(pc.Platform)); err != nil || pc.Platform == "" {
			errs = append(errs, fmt.Errorf("profile platform %q is not supported", pc.Platform))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("project %q: %w", p.ID, err)
	}
	return nil
}

// Load reads the .env file and YAML configuration (if present), applies
// environment overrides and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	path := os.Getenv(configPathEnv)
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	return LoadFile(path, explicit)
}

// LoadFile loads path over the defaults. A missing file is an error only when required.
func LoadFile(path string, required bool) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	case errors.Is(err, os.ErrNotExist) && !required:
		log.Printf("config: %s not found, using defaults", path)
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-section settings and every project.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite, postgres or memory", c.Database.Driver))
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q must be openai or anthropic", c.AI.Provider))
	}
	if strings.TrimSpace(c.AI.PrimaryModel) == "" {
		errs = append(errs, errors.New("ai.primaryModel is required"))
	}
	errs = append(errs, c.Pipeline.validate()...)
	seen := map[string]bool{}
	for _, p := range c.Projects {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("project %q defined twice", p.ID))
		}
		seen[p.ID] = true
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (p PipelineConfig) validate() []error {
	var errs []error
	if p.MaxContentChars < minContentChars {
		errs = append(errs, fmt.Errorf("pipeline.maxContentChars %d must be at least %d", p.MaxContentChars, minContentChars))
	}
	if p.ShortPostLimit < minShortPostLimit || p.ShortPostLimit > maxShortPostLimit {
		errs = append(errs, fmt.Errorf("pipeline.shortPostLimit %d must be between %d and %d", p.ShortPostLimit, minShortPostLimit, maxShortPostLimit))
	}
	if p.MinQualityScore < 0 || p.MinQualityScore > 100 {
		errs = append(errs, fmt.Errorf("pipeline.minQualityScore %v must be between 0 and 100", p.MinQualityScore))
	}
	v := p.Validation
	if v.MinShortChars >= p.ShortPostLimit {
		errs = append(errs, fmt.Errorf("pipeline.validation.minShortChars %d must be below shortPostLimit %d", v.MinShortChars, p.ShortPostLimit))
	}
	if v.MinLongChars >= v.MaxLongChars {
		errs = append(errs, fmt.Errorf("pipeline.validation.minLongChars %d must be below maxLongChars %d", v.MinLongChars, v.MaxLongChars))
	}
	if v.MinLongWords >= v.SoftMaxWords {
		errs = append(errs, fmt.Errorf("pipeline.validation.minLongWords %d must be below softMaxWords %d", v.MinLongWords, v.SoftMaxWords))
	}
	return errs
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(aiProviderEnv); v != "" {
		c.AI.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(aiAPIKeyEnv); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv(aiEndpointEnv); v != "" {
		c.AI.Endpoint = v
	}
	if v := os.Getenv(aiPrimaryModelEnv); v != "" {
		c.AI.PrimaryModel = v
	}
	if v := os.Getenv(aiFallbackEnv); v != "" {
		c.AI.FallbackModels = splitList(v)
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(cronSecretEnv); v != "" {
		c.Server.CronSecret = v
	}
	if v := os.Getenv(serverlessEnv); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Server.Serverless = on
		}
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Publishers.Telegram.BotToken = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.PublicURL != "" {
		base.Server.PublicURL = override.Server.PublicURL
	}
	if override.Server.CronSecret != "" {
		base.Server.CronSecret = override.Server.CronSecret
	}
	base.Server.Async = base.Server.Async || override.Server.Async
	base.Server.Serverless = base.Server.Serverless || override.Server.Serverless

	if override.Database.Driver != "" {
		base.Database.Driver = strings.ToLower(override.Database.Driver)
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	base.AI = mergeAI(base.AI, override.AI)
	base.Pipeline = mergePipeline(base.Pipeline, override.Pipeline)

	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Publishers.LinkedIn.APIBase != "" {
		base.Publishers.LinkedIn.APIBase = override.Publishers.LinkedIn.APIBase
	}
	if override.Publishers.LinkedIn.Version != "" {
		base.Publishers.LinkedIn.Version = override.Publishers.LinkedIn.Version
	}
	if override.Publishers.Twitter.APIBase != "" {
		base.Publishers.Twitter.APIBase = override.Publishers.Twitter.APIBase
	}
	if override.Publishers.Telegram.APIBase != "" {
		base.Publishers.Telegram.APIBase = override.Publishers.Telegram.APIBase
	}
	if override.Publishers.Telegram.BotToken != "" {
		base.Publishers.Telegram.BotToken = override.Publishers.Telegram.BotToken
	}

	if len(override.Projects) > 0 {
		base.Projects = override.Projects
	}
	return base
}

func mergeAI(base, override AIConfig) AIConfig {
	if override.Provider != "" {
		base.Provider = strings.ToLower(override.Provider)
	}
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.PrimaryModel != "" {
		base.PrimaryModel = override.PrimaryModel
	}
	if len(override.FallbackModels) > 0 {
		base.FallbackModels = override.FallbackModels
	}
	if override.TotalBudget > 0 {
		base.TotalBudget = override.TotalBudget
	}
	if override.RequestTimeout > 0 {
		base.RequestTimeout = override.RequestTimeout
	}
	if override.MaxRateLimitRetries > 0 {
		base.MaxRateLimitRetries = override.MaxRateLimitRetries
	}
	if override.RetryBaseDelay > 0 {
		base.RetryBaseDelay = override.RetryBaseDelay
	}
	if override.MinResponseChars > 0 {
		base.MinResponseChars = override.MinResponseChars
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	return base
}

func mergePipeline(base, override PipelineConfig) PipelineConfig {
	if override.MaxFeedWorkers > 0 {
		base.MaxFeedWorkers = override.MaxFeedWorkers
	}
	if override.FeedTimeout > 0 {
		base.FeedTimeout = override.FeedTimeout
	}
	if override.FeedRetries > 0 {
		base.FeedRetries = override.FeedRetries
	}
	if override.FeedRetryDelay > 0 {
		base.FeedRetryDelay = override.FeedRetryDelay
	}
	if override.ExtractTimeout > 0 {
		base.ExtractTimeout = override.ExtractTimeout
	}
	if override.MaxContentChars > 0 {
		base.MaxContentChars = override.MaxContentChars
	}
	if override.MinQualityScore > 0 {
		base.MinQualityScore = override.MinQualityScore
	}
	if override.ShortPostLimit > 0 {
		base.ShortPostLimit = override.ShortPostLimit
	}
	if override.StuckRunTimeout > 0 {
		base.StuckRunTimeout = override.StuckRunTimeout
	}
	if len(override.IndirectionDomains) > 0 {
		base.IndirectionDomains = override.IndirectionDomains
	}
	if override.DedupBatchSize > 0 {
		base.DedupBatchSize = override.DedupBatchSize
	}
	base.Validation = mergeValidation(base.Validation, override.Validation)
	return base
}

func mergeValidation(base, override ValidationConfig) ValidationConfig {
	if override.MinLongChars > 0 {
		base.MinLongChars = override.MinLongChars
	}
	if override.MinShortChars > 0 {
		base.MinShortChars = override.MinShortChars
	}
	if override.MinLongWords > 0 {
		base.MinLongWords = override.MinLongWords
	}
	if override.SoftMaxWords > 0 {
		base.SoftMaxWords = override.SoftMaxWords
	}
	if override.MaxLongChars > 0 {
		base.MaxLongChars = override.MaxLongChars
	}
	if override.MaxForeignChars > 0 {
		base.MaxForeignChars = override.MaxForeignChars
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Addr: ":8080", PublicURL: "http://localhost:8080"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:socialposter.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		AI: AIConfig{
			Provider:            ProviderOpenAI,
			Endpoint:            "https://openrouter.ai/api/v1/chat/completions",
			PrimaryModel:        "anthropic/claude-3.5-haiku",
			FallbackModels:      []string{"openai/gpt-4o-mini", "meta-llama/llama-3.1-70b-instruct"},
			TotalBudget:         90 * time.Second,
			RequestTimeout:      30 * time.Second,
			MaxRateLimitRetries: 2,
			RetryBaseDelay:      2 * time.Second,
			MinResponseChars:    50,
			MaxTokens:           1024,
			Temperature:         0.7,
		},
		Pipeline: PipelineConfig{
			MaxFeedWorkers:  7,
			FeedTimeout:     30 * time.Second,
			FeedRetries:     3,
			FeedRetryDelay:  time.Second,
			ExtractTimeout:  8 * time.Second,
			MaxContentChars: 3000,
			MinQualityScore: 70,
			ShortPostLimit:  280,
			StuckRunTimeout: 30 * time.Minute,
			DedupBatchSize:  100,
			Validation: ValidationConfig{
				MinLongChars:    50,
				MinShortChars:   20,
				MinLongWords:    50,
				SoftMaxWords:    500,
				MaxLongChars:    3000,
				MaxForeignChars: 2,
			},
		},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
		Publishers: PublishersConfig{
			LinkedIn: LinkedInConfig{APIBase: "https://api.linkedin.com", Version: "202401"},
			Twitter:  TwitterConfig{APIBase: "https://api.twitter.com"},
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
	}
}
