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
	Portal  PortalConfig  `yaml:"portal" mapstructure:"portal"`
	Runner  RunnerConfig  `yaml:"runner" mapstructure:"runner"`
	Policy  PolicyConfig  `yaml:"policy" mapstructure:"policy"`
	License LicenseConfig `yaml:"license" mapstructure:"license"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PortalConfig configures the provider portal session.
type PortalConfig struct {
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	SearchPath        string `yaml:"search_path" mapstructure:"search_path"`
	Username          string `yaml:"username" mapstructure:"username"`
	Password          string `yaml:"password" mapstructure:"password"`
	BrowserPath       string `yaml:"browser_path" mapstructure:"browser_path"`
	LoginTimeoutSecs  int    `yaml:"login_timeout_secs" mapstructure:"login_timeout_secs"`
	SearchTimeoutSecs int    `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	TypeDelayMs       int    `yaml:"type_delay_ms" mapstructure:"type_delay_ms"`
	SettleDelayMs     int    `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
}

// RunnerConfig configures the batch run loop.
type RunnerConfig struct {
	DelaySecs int `yaml:"delay_secs" mapstructure:"delay_secs"`
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// PolicyConfig enables the optional release rules.
type PolicyConfig struct {
	MarginLogic   bool `yaml:"margin_logic" mapstructure:"margin_logic"`
	SuperiorLogic bool `yaml:"superior_logic" mapstructure:"superior_logic"`
}

// LicenseConfig configures the license manager API client.
type LicenseConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Attempts    int    `yaml:"attempts" mapstructure:"attempts"`
}

// StoreConfig configures the run-history database.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("EXPEDIENTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("portal.base_url", "https://portalproveedores.ikeasistencia.com")
	v.SetDefault("portal.search_path", "/admin/services/pendientes")
	v.SetDefault("portal.login_timeout_secs", 30)
	v.SetDefault("portal.search_timeout_secs", 5)
	v.SetDefault("portal.type_delay_ms", 50)
	v.SetDefault("portal.settle_delay_ms", 1500)
	v.SetDefault("runner.delay_secs", 2)
	v.SetDefault("runner.batch_size", 5)
	v.SetDefault("license.base_url", "https://ike-license-manager-9b796c40a448.herokuapp.com")
	v.SetDefault("license.timeout_secs", 10)
	v.SetDefault("license.attempts", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "expedientes.db")
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

	return &cfg, nil
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
