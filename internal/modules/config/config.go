package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	envPrefix         = "DESK"
)

// Config ...
type Config struct {
	Service struct {
		Name string `mapstructure:"name"`
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"service"`

	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`

	Broker struct {
		Mode     string `mapstructure:"mode"` // mock | http
		BaseURL  string `mapstructure:"base_url"`
		APIToken string `mapstructure:"api_token"`
		Fixtures string `mapstructure:"fixtures"` // yaml с инструментами для mock
		Seed     int64  `mapstructure:"seed"`
	} `mapstructure:"broker"`

	Strategy struct {
		LookbackDays      int      `mapstructure:"lookback_days"`
		Interval          string   `mapstructure:"interval"`
		OptimizerDays     int      `mapstructure:"optimizer_days"`
		OptimizerInterval string   `mapstructure:"optimizer_interval"`
		CryptoSuffixes    []string `mapstructure:"crypto_suffixes"`
		Seed              int64    `mapstructure:"seed"` // 0 — от времени
	} `mapstructure:"strategy"`

	Executor struct {
		CryptoThreshold  float64 `mapstructure:"crypto_threshold"`
		DefaultThreshold float64 `mapstructure:"default_threshold"`
		DefaultQuantity  float64 `mapstructure:"default_quantity"`
	} `mapstructure:"executor"`

	AutoTrade struct {
		Enabled bool     `mapstructure:"enabled"`
		Spec    string   `mapstructure:"spec"`
		Symbols []string `mapstructure:"symbols"`
	} `mapstructure:"autotrade"`

	Market struct {
		Timezone string `mapstructure:"timezone"`
		Open     string `mapstructure:"open"`  // "09:15"
		Close    string `mapstructure:"close"` // "15:30"
	} `mapstructure:"market"`

	Telegram struct {
		Token       string `mapstructure:"token"`
		ChatID      int64  `mapstructure:"chat_id"`
		MinSeverity string `mapstructure:"min_severity"`
	} `mapstructure:"telegram"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"tracing"`

	Admin struct {
		Passcode string `mapstructure:"passcode"`
	} `mapstructure:"admin"`

	Journal struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"journal"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "trade_desk")
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.port", 8080)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("broker.mode", "mock")
	v.SetDefault("broker.base_url", "")
	v.SetDefault("broker.api_token", "")
	v.SetDefault("broker.fixtures", "")
	v.SetDefault("broker.seed", 42)

	v.SetDefault("strategy.lookback_days", 30)
	v.SetDefault("strategy.interval", "30minute")
	v.SetDefault("strategy.optimizer_days", 5)
	v.SetDefault("strategy.optimizer_interval", "15minute")
	v.SetDefault("strategy.crypto_suffixes", []string{"USDT", "-USD", "BTC", "ETH"})
	v.SetDefault("strategy.seed", 0)

	v.SetDefault("executor.crypto_threshold", 0.6)
	v.SetDefault("executor.default_threshold", 0.7)
	v.SetDefault("executor.default_quantity", 1)

	v.SetDefault("autotrade.enabled", false)
	v.SetDefault("autotrade.spec", "@every 5m")
	v.SetDefault("autotrade.symbols", []string{})

	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.min_severity", "warning")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("admin.passcode", "")

	v.SetDefault("journal.capacity", 500)
	v.SetDefault("request_timeout", "0s")
}

// NewConfig читает configs/<CONFIG_FILE>, поверх — переменные окружения DESK_*.
// Файла может не быть: тогда работаем на дефолтах.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	dir := os.Getenv(configDirENV)
	if dir == "" {
		dir = "configs"
	}
	v.SetConfigFile(dir + "/" + configFileName)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// токен телеграма исторически живёт в TELEGRAM_TOKEN
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Broker.Mode {
	case "mock":
	case "http":
		if c.Broker.BaseURL == "" {
			return fmt.Errorf("broker.base_url is required for http mode")
		}
	default:
		return fmt.Errorf("unknown broker.mode %q", c.Broker.Mode)
	}
	if c.Strategy.LookbackDays <= 0 || c.Strategy.OptimizerDays <= 0 {
		return fmt.Errorf("strategy lookback windows must be positive")
	}
	if c.Executor.CryptoThreshold <= 0 || c.Executor.DefaultThreshold <= 0 {
		return fmt.Errorf("executor thresholds must be positive")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}
