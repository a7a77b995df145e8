package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Market selection
	Asset       string  `yaml:"asset"`       // btc, eth, sol, xrp
	WindowMins  int     `yaml:"window_mins"` // 5 or 15
	Symbol      string  `yaml:"symbol"`      // e.g. BTCUSDT
	Interval    string  `yaml:"interval"`    // kline interval
	MaxCandles  int     `yaml:"max_candles"` // candle buffer capacity
	CycleSec    int     `yaml:"cycle_sec"`   // evaluation loop period
	AutoTrade   bool    `yaml:"auto_trade"`
	TradeAmount float64 `yaml:"trade_amount"` // USD per entry

	// Exchange endpoints and credentials
	GammaHost    string `yaml:"gamma_host"`
	ClobHost     string `yaml:"clob_host"`
	PrivateKey   string `yaml:"private_key"`
	FunderWallet string `yaml:"funder_wallet"`

	// Stream settings
	StreamEndpoints  []string `yaml:"stream_endpoints"`
	ReconnectBaseSec int      `yaml:"reconnect_base_sec"`
	ReconnectMaxSec  int      `yaml:"reconnect_max_sec"`
	StreamMinCandles int      `yaml:"stream_min_candles"`
	StreamStaleSec   int      `yaml:"stream_stale_sec"`

	// Indicator periods
	RSIPeriod  int     `yaml:"rsi_period"`
	MACDFast   int     `yaml:"macd_fast"`
	MACDSlow   int     `yaml:"macd_slow"`
	MACDSignal int     `yaml:"macd_signal"`
	BBPeriod   int     `yaml:"bb_period"`
	BBStd      float64 `yaml:"bb_std"`
	ADXPeriod  int     `yaml:"adx_period"`

	// Signal weights
	WeightMomentum   float64 `yaml:"weight_momentum"`
	WeightDivergence float64 `yaml:"weight_divergence"`
	WeightSR         float64 `yaml:"weight_sr"`
	WeightMACD       float64 `yaml:"weight_macd"`
	WeightVWAP       float64 `yaml:"weight_vwap"`
	WeightBB         float64 `yaml:"weight_bb"`

	// Signal thresholds and multipliers
	VolThreshold       float64 `yaml:"vol_threshold"`
	VolAmplifier       float64 `yaml:"vol_amplifier"`
	RegimeChopMult     float64 `yaml:"regime_chop_mult"`
	RegimeTrendBoost   float64 `yaml:"regime_trend_boost"`
	RegimeCounterMult  float64 `yaml:"regime_counter_mult"`
	NeutralZone        float64 `yaml:"neutral_zone"`
	DivergenceLookback int     `yaml:"divergence_lookback"`
	SRLookback         int     `yaml:"sr_lookback"`
	HistorySize        int     `yaml:"history_size"`

	// Phase thresholds (minimum signal strength per phase)
	PhaseEarlyMin   int `yaml:"phase_early_min"`
	PhaseMidMin     int `yaml:"phase_mid_min"`
	PhaseLateMin    int `yaml:"phase_late_min"`
	PhaseClosingMin int `yaml:"phase_closing_min"`

	// Suggestion parameters
	TPBaseSpread    float64 `yaml:"tp_base_spread"`
	TPStrengthScale float64 `yaml:"tp_strength_scale"`
	TPMaxPrice      float64 `yaml:"tp_max_price"`
	SLDefault       float64 `yaml:"sl_default"`
	SLMinPrice      float64 `yaml:"sl_min_price"`

	// Trading parameters
	BuyPriceOffset  float64 `yaml:"buy_price_offset"`
	SellPriceOffset float64 `yaml:"sell_price_offset"`
	MinShares       float64 `yaml:"min_shares"`
	MaxTokenPrice   float64 `yaml:"max_token_price"`
	MinTokenPrice   float64 `yaml:"min_token_price"`
	PositionLimit   float64 `yaml:"position_limit"`

	// Monitoring timeouts (seconds)
	OrderMonitorTimeoutSec int `yaml:"order_monitor_timeout_sec"`
	OrderPollIntervalSec   int `yaml:"order_poll_interval_sec"`
	CloseMonitorTimeoutSec int `yaml:"close_monitor_timeout_sec"`
	TPSLMonitorTimeoutSec  int `yaml:"tp_sl_monitor_timeout_sec"`
	FetchTimeoutSec        int `yaml:"fetch_timeout_sec"`

	// Recorder configuration
	DBPath    string `yaml:"db_path"`
	DBEnabled bool   `yaml:"db_enabled"`

	// Diagnostics HTTP server; "off" disables it
	StatusAddr string `yaml:"status_addr"`

	// Logging configuration
	LogFile       string `yaml:"log_file"`
	LogMaxSize    int    `yaml:"log_max_size"`    // megabytes
	LogMaxBackups int    `yaml:"log_max_backups"` // number of files
	LogMaxAge     int    `yaml:"log_max_age"`     // days
	LogCompress   bool   `yaml:"log_compress"`
	LogLevel      int    `yaml:"log_level"` // 0=DEBUG, 1=INFO, 2=WARNING, 3=ERROR
}

// Default returns the configuration defaults
func Default() *Config {
	return &Config{
		Asset:       "btc",
		WindowMins:  15,
		Symbol:      "BTCUSDT",
		Interval:    "1m",
		MaxCandles:  30,
		CycleSec:    10,
		AutoTrade:   false,
		TradeAmount: 10.0,

		GammaHost: "https://gamma-api.polymarket.com",
		ClobHost:  "https://clob.polymarket.com",

		StreamEndpoints: []string{
			"wss://stream.binance.com:9443/ws",
			"wss://stream.binance.com:443/ws",
		},
		ReconnectBaseSec: 2,
		ReconnectMaxSec:  30,
		StreamMinCandles: 5,
		StreamStaleSec:   10,

		RSIPeriod:  7,
		MACDFast:   5,
		MACDSlow:   10,
		MACDSignal: 4,
		BBPeriod:   14,
		BBStd:      2.0,
		ADXPeriod:  7,

		WeightMomentum:   0.30,
		WeightDivergence: 0.20,
		WeightSR:         0.10,
		WeightMACD:       0.15,
		WeightVWAP:       0.15,
		WeightBB:         0.10,

		VolThreshold:       0.03,
		VolAmplifier:       1.3,
		RegimeChopMult:     0.50,
		RegimeTrendBoost:   1.15,
		RegimeCounterMult:  0.70,
		NeutralZone:        0.10,
		DivergenceLookback: 6,
		SRLookback:         20,
		HistorySize:        60,

		PhaseEarlyMin:   50,
		PhaseMidMin:     30,
		PhaseLateMin:    70,
		PhaseClosingMin: 999,

		TPBaseSpread:    0.05,
		TPStrengthScale: 0.10,
		TPMaxPrice:      0.95,
		SLDefault:       0.06,
		SLMinPrice:      0.03,

		BuyPriceOffset:  0.02,
		SellPriceOffset: 0.05,
		MinShares:       5,
		MaxTokenPrice:   0.99,
		MinTokenPrice:   0.01,
		PositionLimit:   100.0,

		OrderMonitorTimeoutSec: 30,
		OrderPollIntervalSec:   2,
		CloseMonitorTimeoutSec: 15,
		TPSLMonitorTimeoutSec:  600,
		FetchTimeoutSec:        15,

		DBPath:    "polyradar.db",
		DBEnabled: true,

		StatusAddr: "127.0.0.1:8787",

		LogFile:       "logs/polyradar.log",
		LogMaxSize:    10,
		LogMaxBackups: 5,
		LogMaxAge:     30,
		LogCompress:   true,
		LogLevel:      1,
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment-variable overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Asset = getEnv("RADAR_ASSET", c.Asset)
	c.WindowMins = getEnvAsInt("RADAR_WINDOW_MINS", c.WindowMins)
	c.Symbol = getEnv("RADAR_SYMBOL", c.Symbol)
	c.AutoTrade = getEnvAsBool("RADAR_AUTO_TRADE", c.AutoTrade)
	c.TradeAmount = getEnvAsFloat("RADAR_TRADE_AMOUNT", c.TradeAmount)
	c.PositionLimit = getEnvAsFloat("RADAR_POSITION_LIMIT", c.PositionLimit)
	c.PrivateKey = getEnv("RADAR_PRIVATE_KEY", c.PrivateKey)
	c.FunderWallet = getEnv("RADAR_FUNDER_WALLET", c.FunderWallet)
	c.DBPath = getEnv("RADAR_DB_PATH", c.DBPath)
	c.StatusAddr = getEnv("RADAR_STATUS_ADDR", c.StatusAddr)
	c.LogFile = getEnv("RADAR_LOG_FILE", c.LogFile)
	c.LogLevel = getEnvAsInt("RADAR_LOG_LEVEL", c.LogLevel)
}

// Validate checks the configuration for values the core cannot run with.
// A validation failure is the only fatal startup error.
func (c *Config) Validate() error {
	switch c.Asset {
	case "btc", "eth", "sol", "xrp":
	default:
		return fmt.Errorf("unsupported asset %q", c.Asset)
	}
	if c.WindowMins != 5 && c.WindowMins != 15 {
		return fmt.Errorf("window_mins must be 5 or 15, got %d", c.WindowMins)
	}
	if c.MaxCandles < 10 {
		return fmt.Errorf("max_candles too small: %d", c.MaxCandles)
	}
	if c.TradeAmount <= 0 {
		return fmt.Errorf("trade_amount must be positive, got %f", c.TradeAmount)
	}
	if c.PositionLimit <= 0 {
		return fmt.Errorf("position_limit must be positive, got %f", c.PositionLimit)
	}
	totalWeight := c.WeightMomentum + c.WeightDivergence + c.WeightSR +
		c.WeightMACD + c.WeightVWAP + c.WeightBB
	if totalWeight <= 0 {
		return fmt.Errorf("signal weights sum to %f, must be positive", totalWeight)
	}
	if c.NeutralZone < 0 || c.NeutralZone >= 1 {
		return fmt.Errorf("neutral_zone out of range: %f", c.NeutralZone)
	}
	if c.MinTokenPrice <= 0 || c.MaxTokenPrice >= 1 || c.MinTokenPrice >= c.MaxTokenPrice {
		return fmt.Errorf("token price bounds invalid: [%f, %f]", c.MinTokenPrice, c.MaxTokenPrice)
	}
	if len(c.StreamEndpoints) == 0 {
		return fmt.Errorf("at least one stream endpoint required")
	}
	return nil
}

// getEnvAsBool gets an environment variable as a boolean value
func getEnvAsBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	switch value {
	case "true", "1", "yes", "on", "True", "TRUE":
		return true
	default:
		return false
	}
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
