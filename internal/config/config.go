// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LEADERBOARD_CRAWLER_STORAGE_DSN.
const EnvPrefix = "LEADERBOARD_CRAWLER"

type Config struct {
	RankInterval       int           `mapstructure:"rank_interval"`
	UserInfoInterval   int           `mapstructure:"user_info_interval"`
	PositionInterval   int           `mapstructure:"position_interval"`
	PositionPeriod     time.Duration `mapstructure:"position_period"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	PollPeriod         time.Duration `mapstructure:"poll_period"`
	RankSchedule       string        `mapstructure:"rank_schedule"`
	InfoSchedule       string        `mapstructure:"info_schedule"`
	CrawlUserLimit     int           `mapstructure:"crawl_user_limit"`
	SkipInflightRounds bool          `mapstructure:"skip_inflight_rounds"`
	TradeType          string        `mapstructure:"trade_type"`
	APIBaseURL         string        `mapstructure:"api_base_url"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`

	Storage StorageConfig `mapstructure:"storage"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Log     LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	Database        string `mapstructure:"database"`
	SummaryDatabase string `mapstructure:"summary_database"`
}

// AMQPConfig configures the RPC control transport. An empty URL disables it.
type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// AdminConfig configures the HTTP admin server. An empty address disables it.
type AdminConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

const (
	DefaultRankInterval     = 1
	DefaultUserInfoInterval = 2
	DefaultPositionInterval = 2
	DefaultPositionPeriod   = 5 * time.Second
	DefaultCooldown         = 10 * time.Minute
	DefaultPollPeriod       = 10 * time.Second
	DefaultRankSchedule     = "02:00"
	DefaultInfoSchedule     = "06:00"
	DefaultTradeType        = "PERPETUAL"
	DefaultAPIBaseURL       = "https://www.binance.com/bapi/futures"
	DefaultStorageDriver    = "mongo"
	DefaultStorageDSN       = "mongodb://localhost:27017"
	DefaultAMQPQueue        = "binance_leaderboard_crawl_rpc"
	DefaultAdminAddr        = ":8090"
	DefaultLogFile          = "crawler.log"
)

var knownDrivers = map[string]bool{"mongo": true, "sqlite": true, "postgres": true}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"rank_interval":            DefaultRankInterval,
		"user_info_interval":       DefaultUserInfoInterval,
		"position_interval":        DefaultPositionInterval,
		"position_period":          DefaultPositionPeriod,
		"cooldown":                 DefaultCooldown,
		"poll_period":              DefaultPollPeriod,
		"rank_schedule":            DefaultRankSchedule,
		"info_schedule":            DefaultInfoSchedule,
		"crawl_user_limit":         0,
		"skip_inflight_rounds":     true,
		"trade_type":               DefaultTradeType,
		"api_base_url":             DefaultAPIBaseURL,
		"http_timeout":             time.Duration(0),
		"storage.driver":           DefaultStorageDriver,
		"storage.dsn":              DefaultStorageDSN,
		"storage.database":         "",
		"storage.summary_database": "",
		"amqp.url":                 "",
		"amqp.queue":               DefaultAMQPQueue,
		"admin.addr":               DefaultAdminAddr,
		"log.file":                 DefaultLogFile,
		"log.development":          false,
	}
}

// LoadConfig reads path (json or yaml by extension; empty means defaults only),
// then applies .env and LEADERBOARD_CRAWLER_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	for name, s := range map[string]string{"rank_schedule": cfg.RankSchedule, "info_schedule": cfg.InfoSchedule} {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("invalid %s %q, want HH:MM", name, s)
		}
	}
	if cfg.TradeType == "" {
		return errors.New("trade_type is empty")
	}
	if err := validateURLWithCache(cfg.APIBaseURL, "http"); err != nil {
		return fmt.Errorf("invalid api_base_url: %w", err)
	}
	if !knownDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN == "" {
		return errors.New("storage.dsn is empty")
	}
	if cfg.AMQP.URL != "" {
		if err := validateURLWithCache(cfg.AMQP.URL, "amqp"); err != nil {
			return fmt.Errorf("invalid amqp.url: %w", err)
		}
		if cfg.AMQP.Queue == "" {
			return errors.New("amqp.queue is empty")
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.RankInterval < 0 {
		return errors.New("invalid rank_interval")
	}
	if cfg.UserInfoInterval < 0 {
		return errors.New("invalid user_info_interval")
	}
	if cfg.PositionInterval < 0 {
		return errors.New("invalid position_interval")
	}
	if cfg.PositionPeriod <= 0 {
		return errors.New("invalid position_period")
	}
	if cfg.Cooldown <= 0 {
		return errors.New("invalid cooldown")
	}
	if cfg.PollPeriod <= 0 {
		return errors.New("invalid poll_period")
	}
	if cfg.CrawlUserLimit < 0 {
		return errors.New("invalid crawl_user_limit")
	}
	if cfg.HTTPTimeout < 0 {
		return errors.New("invalid http_timeout")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}
