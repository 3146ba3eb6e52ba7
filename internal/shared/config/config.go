package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Rates    RatesConfig    `mapstructure:"rates"`
	Gateways GatewaysConfig `mapstructure:"gateways"`
	Referral ReferralConfig `mapstructure:"referral"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	PublicURL    string        `mapstructure:"public_url"` // base URL for webhook/redirect callbacks
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RatesConfig holds exchange-rate oracle configuration.
type RatesConfig struct {
	OracleURL        string        `mapstructure:"oracle_url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	BitcoinTTL       time.Duration `mapstructure:"bitcoin_ttl"`
	MoneroTTL        time.Duration `mapstructure:"monero_ttl"`
	StalenessCeiling time.Duration `mapstructure:"staleness_ceiling"`
	FiatCurrency     string        `mapstructure:"fiat_currency"`
}

// GatewaysConfig holds per-provider gateway configuration.
type GatewaysConfig struct {
	PayPal  PayPalConfig  `mapstructure:"paypal"`
	Bitcoin BitcoinConfig `mapstructure:"bitcoin"`
	Monero  MoneroConfig  `mapstructure:"monero"`
}

// PayPalConfig holds card/wallet gateway configuration.
type PayPalConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	WebhookID      string        `mapstructure:"webhook_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// BitcoinConfig holds the address-based crypto gateway configuration.
type BitcoinConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	PaymentWindow  time.Duration `mapstructure:"payment_window"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MoneroConfig holds the payment-request crypto gateway configuration.
type MoneroConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ReferralConfig holds referral reward configuration.
type ReferralConfig struct {
	RewardAmount string `mapstructure:"reward_amount"`
	Currency     string `mapstructure:"currency"`
}

// TrackingConfig holds carrier tracking configuration.
type TrackingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	TTL            time.Duration `mapstructure:"ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.AddConfigPath(path)
	}

	// Environment variables override file values (SHOPSTACK_SERVER_ADDRESS, ...)
	v.SetEnvPrefix("SHOPSTACK")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("redis.address", "localhost:6379")

	v.SetDefault("rates.oracle_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("rates.request_timeout", 10*time.Second)
	v.SetDefault("rates.bitcoin_ttl", 15*time.Minute)
	v.SetDefault("rates.monero_ttl", 5*time.Minute)
	v.SetDefault("rates.staleness_ceiling", time.Hour)
	v.SetDefault("rates.fiat_currency", "gbp")

	v.SetDefault("gateways.paypal.base_url", "https://api-m.paypal.com")
	v.SetDefault("gateways.paypal.request_timeout", 30*time.Second)
	v.SetDefault("gateways.bitcoin.payment_window", time.Hour)
	v.SetDefault("gateways.bitcoin.request_timeout", 15*time.Second)
	v.SetDefault("gateways.monero.request_timeout", 15*time.Second)

	v.SetDefault("referral.reward_amount", "5.00")
	v.SetDefault("referral.currency", "gbp")

	v.SetDefault("tracking.ttl", 30*time.Minute)
	v.SetDefault("tracking.request_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
