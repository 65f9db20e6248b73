package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dealscope/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	S3          S3Config
	Log         LogConfig
	Parser      ParserConfig
	Compression CompressionConfig
	Pipeline    PipelineConfig
	Scoring     ScoringConfig
}

// ParserProviderConfig holds settings for a single LLM extraction provider.
type ParserProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ParserConfig holds extraction provider settings with multi-provider fallback.
type ParserConfig struct {
	Primary   ParserProviderConfig `mapstructure:"primary"`
	Secondary ParserProviderConfig `mapstructure:"secondary"`
	Tertiary  ParserProviderConfig `mapstructure:"tertiary"`
}

// Providers returns the configured providers in fallback order.
func (p *ParserConfig) Providers() []*ParserProviderConfig {
	var out []*ParserProviderConfig
	for _, c := range []*ParserProviderConfig{&p.Primary, &p.Secondary, &p.Tertiary} {
		if c.Provider != "" {
			out = append(out, c)
		}
	}
	return out
}

// CompressionConfig holds Compression Guard settings.
type CompressionConfig struct {
	LimitBytes        int64 `mapstructure:"limit_bytes"`
	MaxSteps          int   `mapstructure:"max_steps"`
	MinJPEGQuality    int   `mapstructure:"min_jpeg_quality"`
	MinImageDimension int   `mapstructure:"min_image_dimension"`
}

// PipelineConfig holds orchestrator and gateway settings.
type PipelineConfig struct {
	Concurrency      int                    `mapstructure:"concurrency"`
	AttemptTimeout   time.Duration          `mapstructure:"attempt_timeout"`
	MaxRetries       int                    `mapstructure:"max_retries"`
	BackoffBase      time.Duration          `mapstructure:"backoff_base"`
	OversizedPolicy  domain.OversizedPolicy `mapstructure:"oversized_policy"`
	MaxDocuments     int                    `mapstructure:"max_documents"`
	MaxDocumentBytes int64                  `mapstructure:"max_document_bytes"`
	SectionPenalty   float64                `mapstructure:"section_penalty"`
}

// ScoringConfig holds Scoring Engine settings.
type ScoringConfig struct {
	Weights          map[domain.Dimension]float64
	LowDataThreshold float64 `mapstructure:"low_data_threshold"`
	RubricPath       string  `mapstructure:"rubric_path"`
	StrongInvestMin  int     `mapstructure:"strong_invest_min"`
	InvestMin        int     `mapstructure:"invest_min"`
	HoldMin          int     `mapstructure:"hold_min"`
	PassMin          int     `mapstructure:"pass_min"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
	// AllowedOrigins lists the CORS origins, comma separated in the environment.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds report store connection settings.
type DBConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
	MaxOpen    int    `mapstructure:"max_open"`
	MaxIdle    int    `mapstructure:"max_idle"`
}

// DSN returns the connection string for the configured driver.
func (d *DBConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for the report archive.
type S3Config struct {
	ArchiveEnabled bool   `mapstructure:"archive_enabled"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	PresignExpiry  int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the DEALSCOPE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEALSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// DB defaults
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "dealscope")
	v.SetDefault("db.password", "dealscope_secret")
	v.SetDefault("db.name", "dealscope_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "dealscope.db")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.archive_enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "dealscope-reports")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Parser defaults
	v.SetDefault("parser.primary.provider", "claude")
	v.SetDefault("parser.primary.api_key", "")
	v.SetDefault("parser.primary.default_model", "")
	v.SetDefault("parser.primary.timeout_secs", 120)
	v.SetDefault("parser.secondary.provider", "")
	v.SetDefault("parser.secondary.api_key", "")
	v.SetDefault("parser.secondary.default_model", "")
	v.SetDefault("parser.secondary.timeout_secs", 120)
	v.SetDefault("parser.tertiary.provider", "")
	v.SetDefault("parser.tertiary.api_key", "")
	v.SetDefault("parser.tertiary.default_model", "")
	v.SetDefault("parser.tertiary.timeout_secs", 120)

	// Compression defaults
	v.SetDefault("compression.limit_bytes", 20*1024*1024)
	v.SetDefault("compression.max_steps", 8)
	v.SetDefault("compression.min_jpeg_quality", 40)
	v.SetDefault("compression.min_image_dimension", 512)

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.attempt_timeout", "90s")
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.backoff_base", "500ms")
	v.SetDefault("pipeline.oversized_policy", string(domain.OversizedReject))
	v.SetDefault("pipeline.max_documents", 20)
	v.SetDefault("pipeline.max_document_bytes", 100*1024*1024)
	v.SetDefault("pipeline.section_penalty", 15)

	// Scoring defaults
	v.SetDefault("scoring.weights.team", 25)
	v.SetDefault("scoring.weights.market", 25)
	v.SetDefault("scoring.weights.product", 20)
	v.SetDefault("scoring.weights.traction", 20)
	v.SetDefault("scoring.weights.financials", 10)
	v.SetDefault("scoring.low_data_threshold", 40)
	v.SetDefault("scoring.rubric_path", "")
	v.SetDefault("scoring.strong_invest_min", 80)
	v.SetDefault("scoring.invest_min", 65)
	v.SetDefault("scoring.hold_min", 50)
	v.SetDefault("scoring.pass_min", 35)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                     "DEALSCOPE_SERVER_PORT",
		"server.read_timeout":             "DEALSCOPE_SERVER_READ_TIMEOUT",
		"server.write_timeout":            "DEALSCOPE_SERVER_WRITE_TIMEOUT",
		"server.environment":              "DEALSCOPE_SERVER_ENVIRONMENT",
		"server.max_upload_mb":            "DEALSCOPE_SERVER_MAX_UPLOAD_MB",
		"server.allowed_origins":          "DEALSCOPE_SERVER_ALLOWED_ORIGINS",
		"db.driver":                       "DEALSCOPE_DB_DRIVER",
		"db.host":                         "DEALSCOPE_DB_HOST",
		"db.port":                         "DEALSCOPE_DB_PORT",
		"db.user":                         "DEALSCOPE_DB_USER",
		"db.password":                     "DEALSCOPE_DB_PASSWORD",
		"db.name":                         "DEALSCOPE_DB_NAME",
		"db.sslmode":                      "DEALSCOPE_DB_SSLMODE",
		"db.sqlite_path":                  "DEALSCOPE_DB_SQLITE_PATH",
		"db.max_open":                     "DEALSCOPE_DB_MAX_OPEN",
		"db.max_idle":                     "DEALSCOPE_DB_MAX_IDLE",
		"s3.archive_enabled":              "DEALSCOPE_S3_ARCHIVE_ENABLED",
		"s3.region":                       "DEALSCOPE_S3_REGION",
		"s3.bucket":                       "DEALSCOPE_S3_BUCKET",
		"s3.endpoint":                     "DEALSCOPE_S3_ENDPOINT",
		"s3.access_key":                   "DEALSCOPE_S3_ACCESS_KEY",
		"s3.secret_key":                   "DEALSCOPE_S3_SECRET_KEY",
		"s3.presign_expiry":               "DEALSCOPE_S3_PRESIGN_EXPIRY",
		"log.level":                       "DEALSCOPE_LOG_LEVEL",
		"log.format":                      "DEALSCOPE_LOG_FORMAT",
		"parser.primary.provider":         "DEALSCOPE_PARSER_PRIMARY_PROVIDER",
		"parser.primary.api_key":          "DEALSCOPE_PARSER_PRIMARY_API_KEY",
		"parser.primary.default_model":    "DEALSCOPE_PARSER_PRIMARY_DEFAULT_MODEL",
		"parser.primary.timeout_secs":     "DEALSCOPE_PARSER_PRIMARY_TIMEOUT_SECS",
		"parser.secondary.provider":       "DEALSCOPE_PARSER_SECONDARY_PROVIDER",
		"parser.secondary.api_key":        "DEALSCOPE_PARSER_SECONDARY_API_KEY",
		"parser.secondary.default_model":  "DEALSCOPE_PARSER_SECONDARY_DEFAULT_MODEL",
		"parser.secondary.timeout_secs":   "DEALSCOPE_PARSER_SECONDARY_TIMEOUT_SECS",
		"parser.tertiary.provider":        "DEALSCOPE_PARSER_TERTIARY_PROVIDER",
		"parser.tertiary.api_key":         "DEALSCOPE_PARSER_TERTIARY_API_KEY",
		"parser.tertiary.default_model":   "DEALSCOPE_PARSER_TERTIARY_DEFAULT_MODEL",
		"parser.tertiary.timeout_secs":    "DEALSCOPE_PARSER_TERTIARY_TIMEOUT_SECS",
		"compression.limit_bytes":         "DEALSCOPE_COMPRESSION_LIMIT_BYTES",
		"compression.max_steps":           "DEALSCOPE_COMPRESSION_MAX_STEPS",
		"compression.min_jpeg_quality":    "DEALSCOPE_COMPRESSION_MIN_JPEG_QUALITY",
		"compression.min_image_dimension": "DEALSCOPE_COMPRESSION_MIN_IMAGE_DIMENSION",
		"pipeline.concurrency":            "DEALSCOPE_PIPELINE_CONCURRENCY",
		"pipeline.attempt_timeout":        "DEALSCOPE_PIPELINE_ATTEMPT_TIMEOUT",
		"pipeline.max_retries":            "DEALSCOPE_PIPELINE_MAX_RETRIES",
		"pipeline.backoff_base":           "DEALSCOPE_PIPELINE_BACKOFF_BASE",
		"pipeline.oversized_policy":       "DEALSCOPE_PIPELINE_OVERSIZED_POLICY",
		"pipeline.max_documents":          "DEALSCOPE_PIPELINE_MAX_DOCUMENTS",
		"pipeline.max_document_bytes":     "DEALSCOPE_PIPELINE_MAX_DOCUMENT_BYTES",
		"pipeline.section_penalty":        "DEALSCOPE_PIPELINE_SECTION_PENALTY",
		"scoring.weights.team":            "DEALSCOPE_SCORING_WEIGHTS_TEAM",
		"scoring.weights.market":          "DEALSCOPE_SCORING_WEIGHTS_MARKET",
		"scoring.weights.product":         "DEALSCOPE_SCORING_WEIGHTS_PRODUCT",
		"scoring.weights.traction":        "DEALSCOPE_SCORING_WEIGHTS_TRACTION",
		"scoring.weights.financials":      "DEALSCOPE_SCORING_WEIGHTS_FINANCIALS",
		"scoring.low_data_threshold":      "DEALSCOPE_SCORING_LOW_DATA_THRESHOLD",
		"scoring.rubric_path":             "DEALSCOPE_SCORING_RUBRIC_PATH",
		"scoring.strong_invest_min":       "DEALSCOPE_SCORING_STRONG_INVEST_MIN",
		"scoring.invest_min":              "DEALSCOPE_SCORING_INVEST_MIN",
		"scoring.hold_min":                "DEALSCOPE_SCORING_HOLD_MIN",
		"scoring.pass_min":                "DEALSCOPE_SCORING_PASS_MIN",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if DEALSCOPE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DEALSCOPE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:           serverPort,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		Environment:    v.GetString("server.environment"),
		MaxUploadMB:    v.GetInt64("server.max_upload_mb"),
		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}
	cfg.DB = DBConfig{
		Driver:     v.GetString("db.driver"),
		Host:       v.GetString("db.host"),
		Port:       v.GetInt("db.port"),
		User:       v.GetString("db.user"),
		Password:   v.GetString("db.password"),
		Name:       v.GetString("db.name"),
		SSLMode:    v.GetString("db.sslmode"),
		SQLitePath: v.GetString("db.sqlite_path"),
		MaxOpen:    v.GetInt("db.max_open"),
		MaxIdle:    v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		ArchiveEnabled: v.GetBool("s3.archive_enabled"),
		Region:         v.GetString("s3.region"),
		Bucket:         v.GetString("s3.bucket"),
		Endpoint:       v.GetString("s3.endpoint"),
		AccessKey:      v.GetString("s3.access_key"),
		SecretKey:      v.GetString("s3.secret_key"),
		PresignExpiry:  v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	provider := func(prefix string) ParserProviderConfig {
		return ParserProviderConfig{
			Provider:     v.GetString(prefix + ".provider"),
			APIKey:       v.GetString(prefix + ".api_key"),
			DefaultModel: v.GetString(prefix + ".default_model"),
			TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
		}
	}
	cfg.Parser = ParserConfig{
		Primary:   provider("parser.primary"),
		Secondary: provider("parser.secondary"),
		Tertiary:  provider("parser.tertiary"),
	}

	cfg.Compression = CompressionConfig{
		LimitBytes:        v.GetInt64("compression.limit_bytes"),
		MaxSteps:          v.GetInt("compression.max_steps"),
		MinJPEGQuality:    v.GetInt("compression.min_jpeg_quality"),
		MinImageDimension: v.GetInt("compression.min_image_dimension"),
	}

	cfg.Pipeline = PipelineConfig{
		Concurrency:      v.GetInt("pipeline.concurrency"),
		AttemptTimeout:   v.GetDuration("pipeline.attempt_timeout"),
		MaxRetries:       v.GetInt("pipeline.max_retries"),
		BackoffBase:      v.GetDuration("pipeline.backoff_base"),
		OversizedPolicy:  domain.OversizedPolicy(v.GetString("pipeline.oversized_policy")),
		MaxDocuments:     v.GetInt("pipeline.max_documents"),
		MaxDocumentBytes: v.GetInt64("pipeline.max_document_bytes"),
		SectionPenalty:   v.GetFloat64("pipeline.section_penalty"),
	}

	weights := make(map[domain.Dimension]float64, len(domain.AllDimensions()))
	for _, d := range domain.AllDimensions() {
		weights[d] = v.GetFloat64("scoring.weights." + string(d))
	}
	cfg.Scoring = ScoringConfig{
		Weights:          weights,
		LowDataThreshold: v.GetFloat64("scoring.low_data_threshold"),
		RubricPath:       v.GetString("scoring.rubric_path"),
		StrongInvestMin:  v.GetInt("scoring.strong_invest_min"),
		InvestMin:        v.GetInt("scoring.invest_min"),
		HoldMin:          v.GetInt("scoring.hold_min"),
		PassMin:          v.GetInt("scoring.pass_min"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot be auto-corrected. Weight sums are not checked here:
// the scoring engine normalizes them and reports a warning.
func (c *Config) Validate() error {
	if c.Pipeline.Concurrency < 1 {
		return &domain.ConfigurationError{Key: "pipeline.concurrency", Reason: "must be at least 1"}
	}
	if c.Pipeline.MaxRetries < 0 {
		return &domain.ConfigurationError{Key: "pipeline.max_retries", Reason: "must not be negative"}
	}
	if c.Pipeline.AttemptTimeout <= 0 {
		return &domain.ConfigurationError{Key: "pipeline.attempt_timeout", Reason: "must be positive"}
	}
	if !c.Pipeline.OversizedPolicy.IsValid() {
		return &domain.ConfigurationError{
			Key:    "pipeline.oversized_policy",
			Reason: fmt.Sprintf("unknown policy %q; allowed: reject, truncate, proceed", c.Pipeline.OversizedPolicy),
		}
	}
	if c.Compression.LimitBytes <= 0 {
		return &domain.ConfigurationError{Key: "compression.limit_bytes", Reason: "must be positive"}
	}
	if c.DB.Driver != "postgres" && c.DB.Driver != "sqlite" {
		return &domain.ConfigurationError{Key: "db.driver", Reason: fmt.Sprintf("unknown driver %q", c.DB.Driver)}
	}
	s := c.Scoring
	if !(s.StrongInvestMin > s.InvestMin && s.InvestMin > s.HoldMin && s.HoldMin > s.PassMin && s.PassMin > 0 && s.StrongInvestMin <= 100) {
		return &domain.ConfigurationError{
			Key:    "scoring.bands",
			Reason: fmt.Sprintf("band minima must be strictly decreasing within (0,100]: %d/%d/%d/%d", s.StrongInvestMin, s.InvestMin, s.HoldMin, s.PassMin),
		}
	}
	for d, w := range c.Scoring.Weights {
		if w < 0 {
			return &domain.ConfigurationError{Key: "scoring.weights." + string(d), Reason: "must not be negative"}
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
