package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"SignalPulse/internal/collector"
	"SignalPulse/internal/model"
	"SignalPulse/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken      string `yaml:"bot_token"`
		ChatID        string `yaml:"chat_id"`
		WebhookSecret string `yaml:"webhook_secret"`
		Mode          string `yaml:"mode" default:"polling" validate:"oneof=polling webhook off"`
		APIBase       string `yaml:"api_base" default:"https://api.telegram.org" validate:"url"`
	} `yaml:"telegram"`
	Market struct {
		Provider        string        `yaml:"provider" default:"rest" validate:"oneof=rest yahoo mock"`
		BaseURL         string        `yaml:"base_url" default:"https://api.twelvedata.com"`
		APIKey          string        `yaml:"api_key"`
		BarCount        int           `yaml:"bar_count" default:"650" validate:"gte=50,lte=5000"`
		Timeout         time.Duration `yaml:"timeout" default:"20s" validate:"gte=1s"`
		MaxCallsPerHour int           `yaml:"max_calls_per_hour" default:"8" validate:"gte=0"`
		MaxCallsPerDay  int           `yaml:"max_calls_per_day" default:"800" validate:"gte=0"`
	} `yaml:"market"`
	Engine struct {
		Watchlist      []string      `yaml:"watchlist" default:"[\"EURUSD\",\"GBPUSD\",\"USDJPY\"]" validate:"min=1,dive,required"`
		Timeframe      string        `yaml:"timeframe" default:"5min"`
		HTFFactor      int           `yaml:"htf_factor" default:"3" validate:"gte=2,lte=12"`
		MaxHTFBars     int           `yaml:"max_htf_bars" default:"400" validate:"gte=1"`
		CloseOnly      bool          `yaml:"close_only" default:"true"`
		CloseGrace     time.Duration `yaml:"close_grace" default:"5s"`
		MinBars        int           `yaml:"min_bars" default:"220" validate:"gte=30"`
		MinATRRatio    float64       `yaml:"min_atr_ratio" default:"0.0001" validate:"gte=0"`
		MinVotes       int           `yaml:"min_votes" default:"3" validate:"gte=1,lte=4"`
		ConfidenceBase float64       `yaml:"confidence_base" default:"0.70" validate:"gte=0,lte=1"`
		ConfidenceStep float64       `yaml:"confidence_step" default:"0.05" validate:"gte=0,lte=1"`
		ConfidenceCap  float64       `yaml:"confidence_cap" default:"0.95" validate:"gte=0,lte=1"`
		Threshold      float64       `yaml:"threshold" default:"0.75" validate:"gte=0,lte=1"`
		Amount         string        `yaml:"amount" default:"1" validate:"numeric"`
		Duration       time.Duration `yaml:"duration" default:"2h"`
		Cooldown       time.Duration `yaml:"cooldown" default:"15m"`
		GlobalGap      time.Duration `yaml:"global_gap" default:"2m"`
	} `yaml:"engine"`
	Guardrail struct {
		LossStreakStop int    `yaml:"loss_streak_stop" default:"3" validate:"gte=0"`
		StopLoss       string `yaml:"stop_loss" default:"0" validate:"numeric"`
		TakeProfit     string `yaml:"take_profit" default:"0" validate:"numeric"`
		Payout         string `yaml:"payout" default:"0.8" validate:"numeric"`
	} `yaml:"guardrail"`
	Storage struct {
		StateFile    string `yaml:"state_file" default:"data/state.json"`
		SQLitePath   string `yaml:"sqlite_path" default:"data/signalpulse.db"`
		ResumeOnBoot bool   `yaml:"resume_on_boot" default:"true"`
	} `yaml:"storage"`
	Schedule struct {
		DailySummaryCron string `yaml:"daily_summary_cron" default:"0 0 0 * * *"`
	} `yaml:"schedule"`
	Server struct {
		Port string `yaml:"port" default:"8080"`
	} `yaml:"server"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic" default:"signalpulse.signals"`
	} `yaml:"kafka"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

var validate = validator.New()

// Load reads config from a YAML file, then applies .env and environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstEnv("BOT_TOKEN", "TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("TELEGRAM_MODE"); v != "" {
		cfg.Telegram.Mode = v
	}
	if v := os.Getenv("MARKET_PROVIDER"); v != "" {
		cfg.Market.Provider = v
	}
	if v := os.Getenv("MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("MARKET_API_KEY"); v != "" {
		cfg.Market.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.Storage.StateFile = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.Engine.Watchlist = splitList(v)
	}
	if v := os.Getenv("MAX_CALLS_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Market.MaxCallsPerHour = n
		}
	}
	if v := os.Getenv("MAX_CALLS_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Market.MaxCallsPerDay = n
		}
	}
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := model.ParseTimeframe(c.Engine.Timeframe); err != nil {
		return fmt.Errorf("engine.timeframe: %w", err)
	}
	if c.Engine.ConfidenceBase > c.Engine.ConfidenceCap {
		return errors.New("engine.confidence_base must not exceed engine.confidence_cap")
	}
	if c.Engine.MinBars <= c.Engine.HTFFactor {
		return errors.New("engine.min_bars must exceed engine.htf_factor")
	}
	// One forming primary bar and one partial higher bucket are discarded.
	if c.Market.BarCount <= c.Engine.MinBars {
		return fmt.Errorf("market.bar_count %d must exceed engine.min_bars %d", c.Market.BarCount, c.Engine.MinBars)
	}
	htfTrend := strategy.DefaultParams().HTFTrend
	if need := c.Engine.HTFFactor * (htfTrend + 2); c.Market.BarCount < need {
		return fmt.Errorf("market.bar_count %d too small: htf_factor %d needs %d bars for the higher timeframe EMA%d",
			c.Market.BarCount, c.Engine.HTFFactor, need, htfTrend)
	}
	if c.Engine.MaxHTFBars < htfTrend {
		return fmt.Errorf("engine.max_htf_bars must be at least %d", htfTrend)
	}
	if c.Telegram.Mode != "off" {
		if c.Telegram.BotToken == "" {
			return errors.New("telegram.bot_token is required")
		}
		if c.Telegram.ChatID == "" {
			return errors.New("telegram.chat_id is required")
		}
	}
	if c.Telegram.Mode == "webhook" && c.Telegram.WebhookSecret == "" {
		return errors.New("telegram.webhook_secret is required in webhook mode")
	}
	if c.Market.Provider == "rest" && c.Market.APIKey == "" {
		return errors.New("market.api_key is required for the rest provider")
	}
	return nil
}

// CollectorOptions returns the fetch and aggregation settings.
func (c *Config) CollectorOptions() collector.Options {
	return collector.Options{
		BarCount:   c.Market.BarCount,
		HTFFactor:  c.Engine.HTFFactor,
		MaxHTFBars: c.Engine.MaxHTFBars,
		Timeout:    c.Market.Timeout,
		CloseOnly:  c.Engine.CloseOnly,
	}
}

// StrategyParams returns the evaluator settings on top of the stock indicator periods.
func (c *Config) StrategyParams() strategy.Params {
	p := strategy.DefaultParams()
	p.MinBars = c.Engine.MinBars
	p.MinATRRatio = c.Engine.MinATRRatio
	p.CloseOnly = c.Engine.CloseOnly
	p.CloseGrace = c.Engine.CloseGrace
	p.MinVotes = c.Engine.MinVotes
	p.ConfidenceBase = c.Engine.ConfidenceBase
	p.ConfidenceStep = c.Engine.ConfidenceStep
	p.ConfidenceCap = c.Engine.ConfidenceCap
	return p
}

// Timeframe returns the parsed default timeframe. Only valid after Validate.
func (c *Config) Timeframe() model.Timeframe {
	tf, _ := model.ParseTimeframe(c.Engine.Timeframe)
	return tf
}

// Instruments expands the watchlist. A leading "-" keeps an entry but disables it.
func (c *Config) Instruments() []model.InstrumentConfig {
	return ParseWatchlist(strings.Join(c.Engine.Watchlist, ","), c.Timeframe())
}

// ParseWatchlist parses "EURUSD,-GBPUSD USDJPY" into instrument entries,
// upper-casing symbols and dropping duplicates.
func ParseWatchlist(s string, tf model.Timeframe) []model.InstrumentConfig {
	var out []model.InstrumentConfig
	seen := make(map[string]bool)
	for _, raw := range splitList(s) {
		enabled := true
		if strings.HasPrefix(raw, "-") {
			enabled = false
			raw = raw[1:]
		}
		sym := strings.ToUpper(strings.ReplaceAll(raw, "/", ""))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, model.InstrumentConfig{Symbol: sym, Timeframe: tf, Enabled: enabled})
	}
	return out
}

func (c *Config) Amount() decimal.Decimal     { return mustDecimal(c.Engine.Amount) }
func (c *Config) StopLoss() decimal.Decimal   { return mustDecimal(c.Guardrail.StopLoss) }
func (c *Config) TakeProfit() decimal.Decimal { return mustDecimal(c.Guardrail.TakeProfit) }
func (c *Config) Payout() decimal.Decimal     { return mustDecimal(c.Guardrail.Payout) }

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';' || r == '\n'
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
