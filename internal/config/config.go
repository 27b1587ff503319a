package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/leadsync/internal/classifier"
	"github.com/amishk599/leadsync/internal/model"
	"github.com/amishk599/leadsync/internal/secrets"
)

// Config is the root configuration for leadsync.
type Config struct {
	Sync         SyncConfig
	Schedule     ScheduleConfig
	Sources      []SourceConfig
	Retry        RetryConfig
	RateLimit    RateLimitConfig
	Classifier   ClassifierConfig
	Store        StoreConfig
	Notification NotificationConfig
	Server       ServerConfig
	Export       ExportConfig
}

// SyncConfig tunes one sync run.
type SyncConfig struct {
	Threshold int           // notify when unapplied >= Threshold
	Workers   int           // concurrent classifier calls
	Timeout   time.Duration // upper bound for one run
	LockFile  string        // empty disables the host run lock
	DryRun    bool          // use the no-op store
}

// ScheduleConfig controls the periodic runner used by "start".
type ScheduleConfig struct {
	Interval time.Duration
}

// SourceConfig describes one posting source.
type SourceConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"` // "file", "http", "greenhouse", "lever", "ashby" or "gem"
	Path       string            `yaml:"path"`
	URL        string            `yaml:"url"`
	Headers    map[string]string `yaml:"headers"`
	BoardToken string            `yaml:"board_token"`
	Company    string            `yaml:"company"`
	Enabled    bool              `yaml:"enabled"`
}

// RetryConfig controls retries of transient source and classifier failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// RateLimitConfig bounds request rates per source host and per LLM provider.
type RateLimitConfig struct {
	SourcesPerSecond    float64
	SourceBurst         int
	ClassifierPerMinute float64
	ClassifierBurst     int
}

// ClassifierConfig selects and configures the eligibility classifier.
type ClassifierConfig struct {
	Type              string // "gemini", "openai" or "rules"
	BaseURL           string
	Model             string
	APIKey            string // may be a keyring reference
	Timeout           time.Duration
	ExcludedCompanies []string
	Keywords          map[model.Category][]string // rules classifier only
}

// StoreConfig selects the repository backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite database file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// NotificationConfig lists the channels that receive backlog alerts.
type NotificationConfig struct {
	Channels     []string // any of "log", "slack", "resend"
	WebhookURL   string   // required for slack
	DashboardURL string
	Resend       ResendConfig
}

// ResendConfig configures email alerts.
type ResendConfig struct {
	APIKey  string   `yaml:"api_key"`
	From    string   `yaml:"from"`
	To      []string `yaml:"to"`
	BaseURL string   `yaml:"base_url"`
}

// ServerConfig configures the HTTP trigger.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"` // bearer token required by POST /api/sync-jobs
}

// ExportConfig configures "leads export --upload".
type ExportConfig struct {
	SFTP SFTPConfig `yaml:"sftp"`
}

// SFTPConfig is the upload target for exported CSV files.
type SFTPConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	User                  string `yaml:"user"`
	Password              string `yaml:"password"`
	KeyFile               string `yaml:"key_file"`
	KnownHostsFile        string `yaml:"known_hosts_file"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`
	RemoteDir             string `yaml:"remote_dir"`
}

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultResendFrom    = "JobMachine <onboarding@resend.dev>"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Sync         rawSyncConfig         `yaml:"sync"`
	Schedule     rawScheduleConfig     `yaml:"schedule"`
	Sources      []SourceConfig        `yaml:"sources"`
	Retry        rawRetryConfig        `yaml:"retry"`
	RateLimit    rawRateLimitConfig    `yaml:"rate_limit"`
	Classifier   rawClassifierConfig   `yaml:"classifier"`
	Store        StoreConfig           `yaml:"store"`
	Notification rawNotificationConfig `yaml:"notification"`
	Server       ServerConfig          `yaml:"server"`
	Export       ExportConfig          `yaml:"export"`
}

type rawSyncConfig struct {
	Threshold *int   `yaml:"threshold"`
	Workers   int    `yaml:"workers"`
	Timeout   string `yaml:"timeout"`
	LockFile  string `yaml:"lock_file"`
	DryRun    bool   `yaml:"dry_run"`
}

type rawScheduleConfig struct {
	Interval string `yaml:"interval"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawRateLimitConfig struct {
	SourcesPerSecond    float64 `yaml:"sources_per_second"`
	SourceBurst         int     `yaml:"source_burst"`
	ClassifierPerMinute float64 `yaml:"classifier_per_minute"`
	ClassifierBurst     int     `yaml:"classifier_burst"`
}

type rawClassifierConfig struct {
	Type              string              `yaml:"type"`
	BaseURL           string              `yaml:"base_url"`
	Model             string              `yaml:"model"`
	APIKey            string              `yaml:"api_key"`
	Timeout           string              `yaml:"timeout"`
	ExcludedCompanies *[]string           `yaml:"excluded_companies"`
	Keywords          map[string][]string `yaml:"keywords"`
}

type rawNotificationConfig struct {
	Type         string       `yaml:"type"` // shorthand for a single channel
	Channels     []string     `yaml:"channels"`
	WebhookURL   string       `yaml:"webhook_url"`
	DashboardURL string       `yaml:"dashboard_url"`
	Resend       ResendConfig `yaml:"resend"`
}

// Load reads and parses the YAML config file at path, resolves keyring
// references through the OS keychain, validates it, and returns Config.
func Load(path string) (*Config, error) {
	return LoadWithResolver(path, secrets.Get)
}

// LoadWithResolver is Load with a custom keyring lookup.
func LoadWithResolver(path string, lookup func(account string) (string, error)) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}

	if err := resolveSecrets(cfg, lookup); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	threshold := 10
	if raw.Sync.Threshold != nil {
		threshold = *raw.Sync.Threshold
	}
	workers := raw.Sync.Workers
	if workers == 0 {
		workers = 1
	}

	syncTimeout, err := parseDuration("sync.timeout", raw.Sync.Timeout, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("schedule.interval", raw.Schedule.Interval, 6*time.Hour)
	if err != nil {
		return nil, err
	}

	maxRetries := 2
	if raw.Retry.MaxRetries != nil {
		maxRetries = *raw.Retry.MaxRetries
	}
	baseDelay, err := parseDuration("retry.base_delay", raw.Retry.BaseDelay, 5*time.Second)
	if err != nil {
		return nil, err
	}

	classifierTimeout, err := parseDuration("classifier.timeout", raw.Classifier.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	sources := make([]SourceConfig, len(raw.Sources))
	for i, s := range raw.Sources {
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s-%d", s.Type, i+1)
		}
		sources[i] = s
	}

	cls, err := classifierFromRaw(raw.Classifier, classifierTimeout)
	if err != nil {
		return nil, err
	}

	store := raw.Store
	store.Driver = strings.ToLower(strings.TrimSpace(store.Driver))
	if store.Driver == "" {
		store.Driver = "sqlite"
	}
	if store.Driver == "sqlite" && store.Path == "" {
		store.Path = "leadsync.db"
	}

	channels := raw.Notification.Channels
	if len(channels) == 0 && raw.Notification.Type != "" {
		channels = []string{raw.Notification.Type}
	}
	if len(channels) == 0 {
		channels = []string{"log"}
	}
	for i := range channels {
		channels[i] = strings.ToLower(strings.TrimSpace(channels[i]))
	}
	resend := raw.Notification.Resend
	if resend.From == "" {
		resend.From = defaultResendFrom
	}

	server := raw.Server
	if server.Addr == "" {
		server.Addr = ":8080"
	}

	export := raw.Export
	if export.SFTP.Port == 0 {
		export.SFTP.Port = 22
	}

	rl := RateLimitConfig{
		SourcesPerSecond:    raw.RateLimit.SourcesPerSecond,
		SourceBurst:         raw.RateLimit.SourceBurst,
		ClassifierPerMinute: raw.RateLimit.ClassifierPerMinute,
		ClassifierBurst:     raw.RateLimit.ClassifierBurst,
	}
	if rl.SourcesPerSecond == 0 {
		rl.SourcesPerSecond = 1
	}
	if rl.SourceBurst == 0 {
		rl.SourceBurst = 1
	}
	if rl.ClassifierBurst == 0 {
		rl.ClassifierBurst = 1
	}

	return &Config{
		Sync: SyncConfig{
			Threshold: threshold,
			Workers:   workers,
			Timeout:   syncTimeout,
			LockFile:  raw.Sync.LockFile,
			DryRun:    raw.Sync.DryRun,
		},
		Schedule:   ScheduleConfig{Interval: interval},
		Sources:    sources,
		Retry:      RetryConfig{MaxRetries: maxRetries, BaseDelay: baseDelay},
		RateLimit:  rl,
		Classifier: cls,
		Store:      store,
		Notification: NotificationConfig{
			Channels:     channels,
			WebhookURL:   raw.Notification.WebhookURL,
			DashboardURL: raw.Notification.DashboardURL,
			Resend:       resend,
		},
		Server: server,
		Export: export,
	}, nil
}

func classifierFromRaw(raw rawClassifierConfig, timeout time.Duration) (ClassifierConfig, error) {
	cls := ClassifierConfig{
		Type:              strings.ToLower(strings.TrimSpace(raw.Type)),
		BaseURL:           raw.BaseURL,
		Model:             raw.Model,
		APIKey:            raw.APIKey,
		Timeout:           timeout,
		ExcludedCompanies: classifier.DefaultExcludedCompanies,
	}
	if cls.Type == "" {
		cls.Type = "gemini"
	}
	if raw.ExcludedCompanies != nil {
		cls.ExcludedCompanies = *raw.ExcludedCompanies
	}

	switch cls.Type {
	case "gemini":
		if cls.BaseURL == "" {
			cls.BaseURL = defaultGeminiBaseURL
		}
		if cls.Model == "" {
			cls.Model = defaultGeminiModel
		}
	case "openai":
		if cls.BaseURL == "" {
			cls.BaseURL = defaultOpenAIBaseURL
		}
		if cls.Model == "" {
			cls.Model = defaultOpenAIModel
		}
	}

	if len(raw.Keywords) > 0 {
		cls.Keywords = make(map[model.Category][]string, len(raw.Keywords))
		for label, kws := range raw.Keywords {
			cat := model.ParseCategory(label)
			if cat == model.CategoryOther {
				return ClassifierConfig{}, fmt.Errorf("classifier.keywords: unknown category %q", label)
			}
			cls.Keywords[cat] = append(cls.Keywords[cat], kws...)
		}
	}
	return cls, nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

// resolveSecrets replaces keyring references in the secret-bearing fields
// of the components that are actually configured.
func resolveSecrets(cfg *Config, lookup func(string) (string, error)) error {
	fields := []struct {
		name string
		ptr  *string
		used bool
	}{
		{"classifier.api_key", &cfg.Classifier.APIKey, cfg.Classifier.Type != "rules"},
		{"notification.webhook_url", &cfg.Notification.WebhookURL, hasChannel(cfg, "slack")},
		{"notification.resend.api_key", &cfg.Notification.Resend.APIKey, hasChannel(cfg, "resend")},
		{"server.secret", &cfg.Server.Secret, true},
		{"store.dsn", &cfg.Store.DSN, cfg.Store.Driver == "postgres"},
		{"export.sftp.password", &cfg.Export.SFTP.Password, cfg.Export.SFTP.Host != ""},
	}
	for _, f := range fields {
		if !f.used {
			continue
		}
		v, err := secrets.Resolve(*f.ptr, lookup)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.name, err)
		}
		*f.ptr = v
	}
	return nil
}

func hasChannel(cfg *Config, name string) bool {
	for _, ch := range cfg.Notification.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

func validate(cfg *Config) error {
	if cfg.Sync.Threshold < 1 {
		return fmt.Errorf("sync.threshold must be at least 1, got %d", cfg.Sync.Threshold)
	}
	if cfg.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1, got %d", cfg.Sync.Workers)
	}
	if cfg.Sync.Timeout <= 0 {
		return fmt.Errorf("sync.timeout must be positive, got %v", cfg.Sync.Timeout)
	}
	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %v", cfg.Schedule.Interval)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}

	enabled := 0
	for _, s := range cfg.Sources {
		if !s.Enabled {
			continue
		}
		enabled++
		switch s.Type {
		case "file":
			if s.Path == "" {
				return fmt.Errorf("source %q: path is required for type file", s.Name)
			}
		case "http":
			if s.URL == "" {
				return fmt.Errorf("source %q: url is required for type http", s.Name)
			}
		case "greenhouse", "lever", "ashby", "gem":
			if s.BoardToken == "" {
				return fmt.Errorf("source %q: board_token is required for type %s", s.Name, s.Type)
			}
		default:
			return fmt.Errorf("source %q: unknown type %q", s.Name, s.Type)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	switch cfg.Classifier.Type {
	case "gemini", "openai":
		if cfg.Classifier.APIKey == "" {
			return fmt.Errorf("classifier.api_key is required when classifier.type is %q", cfg.Classifier.Type)
		}
	case "rules":
	default:
		return fmt.Errorf("classifier.type must be gemini, openai or rules, got %q", cfg.Classifier.Type)
	}

	switch cfg.Store.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", cfg.Store.Driver)
	}

	for _, ch := range cfg.Notification.Channels {
		switch ch {
		case "log":
		case "slack":
			if cfg.Notification.WebhookURL == "" {
				return fmt.Errorf("notification.webhook_url is required for the slack channel")
			}
			if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
				return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
			}
		case "resend":
			if cfg.Notification.Resend.APIKey == "" {
				return fmt.Errorf("notification.resend.api_key is required for the resend channel")
			}
			if len(cfg.Notification.Resend.To) == 0 {
				return fmt.Errorf("notification.resend.to needs at least one recipient")
			}
		default:
			return fmt.Errorf("unknown notification channel %q", ch)
		}
	}

	return nil
}
