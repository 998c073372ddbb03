// Package config loads runtime configuration from defaults, an optional
// YAML file, a .env file and ENTITYRES_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dshills/entityres/internal/arbiter"
	"github.com/dshills/entityres/internal/embedder"
	"github.com/dshills/entityres/internal/regcache"
	"github.com/dshills/entityres/internal/resolver"
	"github.com/dshills/entityres/internal/scorer"
	"github.com/dshills/entityres/internal/searcher"
)

const (
	configName = "entityres"
	envPrefix  = "ENTITYRES"
)

// Config is the full runtime configuration
type Config struct {
	Database  DatabaseConfig       `mapstructure:"database"`
	Embedding embedder.Config      `mapstructure:"embedding"`
	Oracle    arbiter.OracleConfig `mapstructure:"oracle"`
	Scorer    scorer.Config        `mapstructure:"scorer"`
	Resolver  ResolverConfig       `mapstructure:"resolver"`
	Cache     CacheConfig          `mapstructure:"cache"`
	Log       LogConfig            `mapstructure:"log"`
}

// DatabaseConfig locates the registry
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ResolverConfig tunes the resolution pipeline
type ResolverConfig struct {
	OwnDomains       []string      `mapstructure:"own_domains"`
	OverridesFile    string        `mapstructure:"overrides_file"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"gte=0"`
	EmbedTimeout     time.Duration `mapstructure:"embed_timeout" validate:"gte=0"`
	CandidateLimit   int           `mapstructure:"candidate_limit" validate:"gte=0,lte=200"`
	Prefilter        bool          `mapstructure:"prefilter"`
	VerifyThreshold  float64       `mapstructure:"verify_threshold" validate:"gte=0,lte=1"`
	BatchConcurrency int           `mapstructure:"batch_concurrency" validate:"gte=0,lte=64"`
}

// CacheConfig sizes the registry read cache. Size 0 disables it.
type CacheConfig struct {
	Size int           `mapstructure:"size" validate:"gte=0"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

var validate = validator.New()

// New returns a viper instance carrying the defaults and bound to
// ENTITYRES_* environment variables. Nested keys map to underscores, so
// embedding.api_key is read from ENTITYRES_EMBEDDING_API_KEY.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", defaultDBPath())

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_size", 1000)
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("oracle.provider", "none")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", arbiter.DefaultTimeout)
	v.SetDefault("oracle.attempts", arbiter.DefaultAttempts)

	sc := scorer.DefaultConfig()
	v.SetDefault("scorer.weights.cosine", sc.Weights.Cosine)
	v.SetDefault("scorer.weights.email", sc.Weights.Email)
	v.SetDefault("scorer.weights.domain", sc.Weights.Domain)
	v.SetDefault("scorer.weights.name", sc.Weights.Name)
	v.SetDefault("scorer.thresholds.accept", sc.Thresholds.Accept)
	v.SetDefault("scorer.thresholds.margin", sc.Thresholds.Margin)
	v.SetDefault("scorer.thresholds.arbitrate", sc.Thresholds.Arbitrate)
	v.SetDefault("scorer.thresholds.floor", sc.Thresholds.Floor)
	v.SetDefault("scorer.thresholds.ceiling", sc.Thresholds.Ceiling)
	v.SetDefault("scorer.lexical_baseline", sc.LexicalBaseline)
	v.SetDefault("scorer.arbitration_size", sc.ArbitrationSize)

	v.SetDefault("resolver.own_domains", []string{})
	v.SetDefault("resolver.overrides_file", "")
	v.SetDefault("resolver.timeout", 30*time.Second)
	v.SetDefault("resolver.embed_timeout", 5*time.Second)
	v.SetDefault("resolver.candidate_limit", 25)
	v.SetDefault("resolver.prefilter", false)
	v.SetDefault("resolver.verify_threshold", 0.7)
	v.SetDefault("resolver.batch_concurrency", 4)

	v.SetDefault("cache.size", regcache.DefaultSize)
	v.SetDefault("cache.ttl", regcache.DefaultTTL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// defaultDBPath is ~/.entityres/registry.db, or a relative path when the
// home directory is unknown
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".entityres", "registry.db")
	}
	return filepath.Join(home, ".entityres", "registry.db")
}

// Load reads the configuration. An explicit cfgFile must exist; otherwise
// entityres.yaml is looked up in ./ and ~/.entityres and may be absent.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".entityres"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// names are matched case-insensitively
	cfg.Embedding.Provider = strings.ToLower(strings.TrimSpace(cfg.Embedding.Provider))
	cfg.Oracle.Provider = strings.ToLower(strings.TrimSpace(cfg.Oracle.Provider))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed reports the file Load read, empty when none
func ConfigFileUsed(v *viper.Viper) string {
	return v.ConfigFileUsed()
}

// ResolverOptions maps the loaded settings onto resolver options
func (c *Config) ResolverOptions() resolver.Options {
	sc := c.Scorer
	return resolver.Options{
		OwnDomains: c.Resolver.OwnDomains,
		Scorer:     &sc,
		Searcher: searcher.Options{
			Limit:        c.Resolver.CandidateLimit,
			EmbedTimeout: c.Resolver.EmbedTimeout,
			Prefilter:    c.Resolver.Prefilter,
		},
		OracleTimeout:    c.Oracle.Timeout,
		OracleAttempts:   c.Oracle.Attempts,
		VerifyThreshold:  c.Resolver.VerifyThreshold,
		BatchConcurrency: c.Resolver.BatchConcurrency,
		Timeout:          c.Resolver.Timeout,
	}
}
