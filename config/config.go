package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/janosik-trading/janosik/market"
)

// Config is the complete bot configuration. Secrets (database password,
// terminal credentials, telegram token) are never written to config files;
// they are read from the environment on load.
type Config struct {
	Environment string           `yaml:"environment"` // "demo" or "live"
	Database    DatabaseConfig   `yaml:"database"`
	Terminal    TerminalConfig   `yaml:"terminal"`
	Trading     TradingConfig    `yaml:"trading"`
	Strategies  []StrategyConfig `yaml:"strategies"`
	RL          RLConfig         `yaml:"rl"`
	Alerts      AlertsConfig     `yaml:"alerts"`
	Monitor     MonitorConfig    `yaml:"monitor"`
	Journal     JournalConfig    `yaml:"journal"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // env only: JANOSIK_DB_PASSWORD
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MinConns int    `yaml:"min_conns"`
	MaxConns int    `yaml:"max_conns"`
}

// TerminalConfig holds the trading terminal gateway settings.
type TerminalConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Account  string        `yaml:"-"` // env only: JANOSIK_TERMINAL_ACCOUNT
	Password string        `yaml:"-"` // env only: JANOSIK_TERMINAL_PASSWORD
	Server   string        `yaml:"server"`
	Timeout  time.Duration `yaml:"timeout"`
}

// TradingConfig holds capital and risk limits.
type TradingConfig struct {
	Capital          float64  `yaml:"capital"`
	Symbols          []string `yaml:"symbols"`
	Timeframe        string   `yaml:"timeframe"`
	MaxDailyLossPct  float64  `yaml:"max_daily_loss_pct"` // 5 = 5%
	DrawdownSafe     float64  `yaml:"drawdown_safe"`      // 4
	DrawdownCaution  float64  `yaml:"drawdown_caution"`   // 8
	DrawdownCritical float64  `yaml:"drawdown_critical"`  // 12
	MaxTradesPerDay  int      `yaml:"max_trades_per_day"` // 3
	MaxOpenPositions int      `yaml:"max_open_positions"` // 10
	PositionSizePct  float64  `yaml:"position_size_pct"`  // 2
	SizingMode       string   `yaml:"sizing_mode"`        // fixed | kelly | adaptive
	FixedLot         float64  `yaml:"fixed_lot"`
	KellyFraction    float64  `yaml:"kelly_fraction"`
	MaxCorrelation   float64  `yaml:"max_correlation"`
}

// StrategyConfig declares one strategy instance to run.
type StrategyConfig struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"` // RSI | MA
	Symbol    string         `yaml:"symbol"`
	Timeframe string         `yaml:"timeframe"`
	Params    map[string]any `yaml:"params"`
}

// RLConfig holds reinforcement-learning bookkeeping settings.
type RLConfig struct {
	LearningRate    float64       `yaml:"learning_rate"`
	BufferSize      int           `yaml:"buffer_size"`
	BatchSize       int           `yaml:"batch_size"`
	Gamma           float64       `yaml:"gamma"`
	Tau             float64       `yaml:"tau"`
	ModelDir        string        `yaml:"model_dir"`
	RetrainInterval time.Duration `yaml:"retrain_interval"`
}

// AlertsConfig holds telegram alert settings.
type AlertsConfig struct {
	TelegramToken  string `yaml:"-"` // env only: JANOSIK_TELEGRAM_TOKEN
	TelegramChatID string `yaml:"telegram_chat_id"`
}

// Enabled reports whether alerts are configured.
func (a AlertsConfig) Enabled() bool {
	return a.TelegramToken != "" && a.TelegramChatID != ""
}

// MonitorConfig holds the monitoring HTTP server settings.
type MonitorConfig struct {
	Listen string `yaml:"listen"`
}

// JournalConfig holds the local sim/backtest journal settings.
type JournalConfig struct {
	Type       string `yaml:"type"` // "csv" or "sqlite"
	TradesFile string `yaml:"trades_file,omitempty"`
	EquityFile string `yaml:"equity_file,omitempty"`
	DBPath     string `yaml:"db_path,omitempty"`
}

// LoadFromFile loads configuration from a YAML file and applies
// environment overrides for secrets.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JANOSIK_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("JANOSIK_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("JANOSIK_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("JANOSIK_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("JANOSIK_DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("JANOSIK_TERMINAL_ACCOUNT"); v != "" {
		c.Terminal.Account = v
	}
	if v := os.Getenv("JANOSIK_TERMINAL_PASSWORD"); v != "" {
		c.Terminal.Password = v
	}
	if v := os.Getenv("JANOSIK_TELEGRAM_TOKEN"); v != "" {
		c.Alerts.TelegramToken = v
	}
	if v := os.Getenv("JANOSIK_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
}

// IsDemo reports whether the bot runs against the demo environment.
func (c *Config) IsDemo() bool { return c.Environment == "demo" }

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Environment != "demo" && c.Environment != "live" {
		return fmt.Errorf("environment must be 'demo' or 'live', got %q", c.Environment)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("JANOSIK_DB_PASSWORD not set")
	}
	if c.Environment == "live" && c.Terminal.Account == "" {
		return fmt.Errorf("JANOSIK_TERMINAL_ACCOUNT not set")
	}
	if c.Trading.Capital <= 0 {
		return fmt.Errorf("trading.capital must be positive")
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols is required")
	}
	for _, sym := range c.Trading.Symbols {
		if _, ok := market.Instruments[sym]; !ok {
			return fmt.Errorf("unknown instrument: %s", sym)
		}
	}
	if _, err := market.ParseTimeframe(c.Trading.Timeframe); err != nil {
		return err
	}
	if c.Trading.MaxDailyLossPct <= 0 {
		return fmt.Errorf("trading.max_daily_loss_pct must be positive")
	}
	if c.Trading.DrawdownSafe >= c.Trading.DrawdownCaution ||
		c.Trading.DrawdownCaution >= c.Trading.DrawdownCritical {
		return fmt.Errorf("drawdown tiers must increase: safe < caution < critical")
	}
	if c.Trading.MaxTradesPerDay <= 0 {
		return fmt.Errorf("trading.max_trades_per_day must be positive")
	}
	switch c.Trading.SizingMode {
	case "fixed", "kelly", "adaptive":
	default:
		return fmt.Errorf("trading.sizing_mode must be fixed, kelly or adaptive")
	}
	if c.Journal.Type != "" && c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && (c.Journal.TradesFile == "" || c.Journal.EquityFile == "") {
		return fmt.Errorf("journal trades_file and equity_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	for i, sc := range c.Strategies {
		if sc.Name == "" {
			return fmt.Errorf("strategies[%d].name is required", i)
		}
		if sc.Type != "RSI" && sc.Type != "MA" {
			return fmt.Errorf("strategies[%d].type must be RSI or MA", i)
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Environment: "demo",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Name:     "janosik_trading",
			SSLMode:  "prefer",
			MinConns: 1,
			MaxConns: 4,
		},
		Terminal: TerminalConfig{
			Timeout: 30 * time.Second,
		},
		Trading: TradingConfig{
			Capital:          100_000,
			Symbols:          []string{"XAUUSD", "NAS100"},
			Timeframe:        "H1",
			MaxDailyLossPct:  5,
			DrawdownSafe:     4,
			DrawdownCaution:  8,
			DrawdownCritical: 12,
			MaxTradesPerDay:  3,
			MaxOpenPositions: 10,
			PositionSizePct:  2,
			SizingMode:       "fixed",
			FixedLot:         1.0,
			KellyFraction:    0.25,
			MaxCorrelation:   0.8,
		},
		RL: RLConfig{
			LearningRate:    0.0003,
			BufferSize:      100_000,
			BatchSize:       32,
			Gamma:           0.99,
			Tau:             0.005,
			ModelDir:        "./models",
			RetrainInterval: 24 * time.Hour,
		},
		Monitor: MonitorConfig{
			Listen: ":8089",
		},
	}
}
