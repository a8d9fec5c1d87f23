package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"signal_bot/internal/strategy"
	"signal_bot/pkg/tracing"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigPath = "configs/values_local.yaml"

	feedKeyENV       = "TWELVE_DATA_API_KEY"
	tokenTelegramENV = "TELEGRAM_BOT_TOKEN"
	chatTelegramENV  = "TELEGRAM_CHAT_ID"
	autoEnabledENV   = "AUTO_V0_ENABLED"
	liveModeENV      = "LIVE_MODE"
	apiBaseENV       = "API_BASE"
	databaseDSN      = "DATABASE_DSN"
	redisAddrENV     = "REDIS_ADDR"
	logLevelENV      = "LOG_LEVEL"
	portENV          = "PORT"
)

var ErrNoFeedKey = errors.New("env " + feedKeyENV + " is required")

// Config ...
type Config struct {
	Service struct {
		Name string `yaml:"name" default:"signal-bot"`
		Host string `yaml:"host" default:"0.0.0.0"`
		Port int    `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	} `yaml:"service"`

	Log struct {
		Level string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	} `yaml:"log"`

	Telegram struct {
		Token   string `yaml:"token"`
		ChatID  int64  `yaml:"chat_id"`
		Polling bool   `yaml:"polling"`
	} `yaml:"telegram"`

	// Twelve Data
	Feed struct {
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url" default:"https://api.twelvedata.com" validate:"url"`
		StreamURL         string        `yaml:"stream_url" default:"wss://ws.twelvedata.com/v1/quotes/price"`
		Stream            bool          `yaml:"stream"`
		Symbol            string        `yaml:"symbol" default:"EUR/USD" validate:"required"`
		Timeframe         string        `yaml:"timeframe" default:"M15" validate:"oneof=M1 M5 M15 M30 H1 H4 D1"`
		Bars              int           `yaml:"bars" default:"100" validate:"gte=2,lte=5000"`
		Timeout           time.Duration `yaml:"timeout" default:"5s"`
		Retries           int           `yaml:"retries" default:"3" validate:"gte=1"`
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"8" validate:"gte=1"`
		FailureThreshold  int           `yaml:"failure_threshold" default:"2" validate:"gte=1"`
		HealthInterval    time.Duration `yaml:"health_interval" default:"5m"`
	} `yaml:"feed"`

	Strategy strategy.Params `yaml:"strategy"`

	// откуда берём сигнал: engine | rest | supabase
	Source struct {
		Kind    string        `yaml:"kind" default:"engine" validate:"oneof=engine rest supabase"`
		APIBase string        `yaml:"api_base"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"source"`

	Auto struct {
		Enabled      bool          `yaml:"enabled"`
		PollInterval time.Duration `yaml:"poll_interval" default:"60s"`
		SignalTTL    time.Duration `yaml:"signal_ttl" default:"90m"`
		MaxLatency   time.Duration `yaml:"max_latency" default:"5s"`
		LiveMode     bool          `yaml:"live_mode"`
		FailOpen     bool          `yaml:"fail_open"`
	} `yaml:"auto"`

	Storage struct {
		Dir           string `yaml:"dir" default:"data"`
		ExecutionLog  string `yaml:"execution_log" default:"auto_execution_log.jsonl"`
		GateLog       string `yaml:"gate_log" default:"daily_gate_log.jsonl"`
		SummaryLog    string `yaml:"summary_log" default:"daily_summary_log.jsonl"`
		DispatchState string `yaml:"dispatch_state" default:"dispatch_state.json"`
		FeedHealth    string `yaml:"feed_health" default:"data_feed_health.json"`
	} `yaml:"storage"`

	Dispatch struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		MinConfidence int           `yaml:"min_confidence" default:"60" validate:"gte=0,lte=100"`
		Cooldown      time.Duration `yaml:"cooldown" default:"24h"`
		Broadcast     bool          `yaml:"broadcast"`
		Interval      time.Duration `yaml:"interval" default:"15m"`
	} `yaml:"dispatch"`

	// file | redis | none
	Lock struct {
		Kind      string        `yaml:"kind" default:"file" validate:"oneof=file redis none"`
		RedisAddr string        `yaml:"redis_addr"`
		KeyPrefix string        `yaml:"key_prefix" default:"signal_bot"`
		TTL       time.Duration `yaml:"ttl" default:"30s"`
		Wait      time.Duration `yaml:"wait" default:"10s"`
	} `yaml:"lock"`

	DB struct {
		DSN            string        `yaml:"dsn"`
		MaxConns       int32         `yaml:"max_conns" default:"4" validate:"gte=1"`
		ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	} `yaml:"db"`

	Tracing tracing.Config `yaml:"tracing"`
}

// NewConfig: .env -> дефолты из тегов -> yaml -> переменные окружения -> валидация.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(configFilePathENV)
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	return Load(path, explicit)
}

// Load читает конфиг из path. Если файла нет и он не задан явно — работаем на дефолтах.
func Load(path string, mustExist bool) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if mustExist || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Feed.APIKey = getenvDefault(feedKeyENV, c.Feed.APIKey)
	c.Telegram.Token = getenvDefault(tokenTelegramENV, c.Telegram.Token)
	c.Telegram.ChatID = int64FromEnv(chatTelegramENV, c.Telegram.ChatID)
	c.Auto.Enabled = boolFromEnv(autoEnabledENV, c.Auto.Enabled)
	c.Auto.LiveMode = boolFromEnv(liveModeENV, c.Auto.LiveMode)
	c.Source.APIBase = getenvDefault(apiBaseENV, c.Source.APIBase)
	c.DB.DSN = getenvDefault(databaseDSN, getenvDefault("SUPABASE_DB_URL", c.DB.DSN))
	c.Lock.RedisAddr = getenvDefault(redisAddrENV, c.Lock.RedisAddr)
	c.Log.Level = strings.ToLower(getenvDefault(logLevelENV, c.Log.Level))
	c.Service.Port = intFromEnv(portENV, c.Service.Port)
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Strategy.EMAFast >= c.Strategy.EMASlow {
		return fmt.Errorf("invalid config: strategy.ema_fast must be < strategy.ema_slow")
	}
	if c.Source.Kind == "rest" && c.Source.APIBase == "" {
		return fmt.Errorf("invalid config: source.api_base is required for rest source")
	}
	if c.Source.Kind == "supabase" && c.DB.DSN == "" {
		return fmt.Errorf("invalid config: db.dsn is required for supabase source")
	}
	if c.Lock.Kind == "redis" && c.Lock.RedisAddr == "" {
		return fmt.Errorf("invalid config: lock.redis_addr is required for redis lock")
	}
	// журнал исполнений локален, между хостами день занимает только ClaimDay
	if c.Lock.Kind == "redis" && c.DB.DSN == "" {
		return fmt.Errorf("invalid config: db.dsn is required for redis lock")
	}
	return nil
}

// RequireFeedKey — без ключа Twelve Data движок не стартует.
func (c *Config) RequireFeedKey() error {
	if c.Feed.APIKey == "" {
		return ErrNoFeedKey
	}
	return nil
}

// Path — путь к файлу состояния внутри storage.dir.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) || c.Storage.Dir == "" {
		return name
	}
	return filepath.Join(c.Storage.Dir, name)
}

// AutoEnabled перечитывает kill switch из окружения на каждом цикле.
func (c *Config) AutoEnabled() bool {
	return boolFromEnv(autoEnabledENV, c.Auto.Enabled)
}

func (c *Config) ExecutionMode() string {
	if c.Auto.LiveMode {
		return "LIVE"
	}
	return "SIMULATION"
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func int64FromEnv(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
