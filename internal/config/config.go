package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census CensusConfig `yaml:"census" mapstructure:"census"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures extraction, mapping and aggregation.
type CensusConfig struct {
	RootDir   string          `yaml:"root_dir" mapstructure:"root_dir"`
	Datasets  []string        `yaml:"datasets" mapstructure:"datasets"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Filters   []string        `yaml:"filters" mapstructure:"filters"`
	// SkipMalformed counts and skips bad records instead of aborting the file.
	SkipMalformed bool `yaml:"skip_malformed" mapstructure:"skip_malformed"`
	// SortFiles reads each dataset's files in lexicographic order.
	SortFiles         bool   `yaml:"sort_files" mapstructure:"sort_files"`
	ShortCodeFallback bool   `yaml:"short_code_fallback" mapstructure:"short_code_fallback"`
	Parallel          bool   `yaml:"parallel" mapstructure:"parallel"`
	OutputDir         string `yaml:"output_dir" mapstructure:"output_dir"`
	TempDir           string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ReferenceConfig locates the ISIC ↔ ROC SIC reference table. Path may be a
// local .xlsx/.csv file or an http(s)/ftp URL.
type ReferenceConfig struct {
	Path                 string `yaml:"path" mapstructure:"path"`
	Sheet                string `yaml:"sheet" mapstructure:"sheet"`
	ClassificationColumn string `yaml:"classification_column" mapstructure:"classification_column"`
	// Encoding applies to .csv references: "" (UTF-8) or "big5".
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
}

// StoreConfig configures where run results are persisted.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // none, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures remote downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CENSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("census.root_dir", "工商普查原始")
	v.SetDefault("census.datasets", []string{"85年AA290005", "90年AA290006", "95年AA290007"})
	v.SetDefault("census.reference.path", "ISIC_to_ROCSIC.xlsx")
	v.SetDefault("census.reference.sheet", "Sheet2")
	v.SetDefault("census.reference.classification_column", "ISIC_Rev3")
	v.SetDefault("census.filters", []string{"scale != 8"})
	v.SetDefault("census.skip_malformed", true)
	v.SetDefault("census.sort_files", true)
	v.SetDefault("census.short_code_fallback", true)
	v.SetDefault("census.parallel", false)
	v.SetDefault("census.temp_dir", "/tmp/census")
	v.SetDefault("store.driver", "none")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "census-cli/1.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "none", "":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("config: store.database_url is required for driver %q", c.Store.Driver)
		}
	default:
		return eris.Errorf("config: unknown store.driver %q (valid: none, sqlite, postgres)", c.Store.Driver)
	}
	if c.Census.Reference.Path == "" {
		return eris.New("config: census.reference.path is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
