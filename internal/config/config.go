package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Market     MarketConfig     `mapstructure:"market"`
	Indicators IndicatorsConfig `mapstructure:"indicators"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Email      EmailConfig      `mapstructure:"email"`
}

type AppConfig struct {
	Env        string `mapstructure:"env"`
	StagingDir string `mapstructure:"staging_dir"`
	DataDir    string `mapstructure:"data_dir"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Batch   string `mapstructure:"batch"`
}

// MarketConfig drives the upstream price fetch. Tickers are the external
// key for assets; each one must also exist in the asset table for its rows
// to survive reconciliation.
type MarketConfig struct {
	Tickers         []string      `mapstructure:"tickers"`
	Endpoint        string        `mapstructure:"endpoint"`
	Period          string        `mapstructure:"period"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	TransactionsCSV string        `mapstructure:"transactions_csv"`
}

type IndicatorsConfig struct {
	RSIWindow      int `mapstructure:"rsi_window"`
	ShortSMAWindow int `mapstructure:"short_sma_window"`
	LongSMAWindow  int `mapstructure:"long_sma_window"`

	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type PipelineConfig struct {
	// UnresolvedPolicy decides what happens to staged rows whose ticker has
	// no matching asset: "skip" drops them with a warning, "fail" rolls the
	// whole load back.
	UnresolvedPolicy string `mapstructure:"unresolved_policy"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Sender   string `mapstructure:"sender"`
	Receiver string `mapstructure:"receiver"`
	Password string `mapstructure:"password"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.staging_dir", "data/staging")
	v.SetDefault("app.data_dir", "data/processed")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", false)
	v.SetDefault("cron.batch", "0 0 18 * * MON-FRI")
	v.SetDefault("market.endpoint", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("market.period", "3mo")
	v.SetDefault("market.timeout", "30s")
	v.SetDefault("market.max_attempts", 2)
	v.SetDefault("market.retry_delay", "15m")
	v.SetDefault("market.transactions_csv", "data/Transactions.csv")
	v.SetDefault("indicators.rsi_window", 14)
	v.SetDefault("indicators.short_sma_window", 5)
	v.SetDefault("indicators.long_sma_window", 10)
	v.SetDefault("indicators.max_attempts", 2)
	v.SetDefault("indicators.retry_delay", "1m")
	v.SetDefault("pipeline.unresolved_policy", "skip")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_port", 587)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
