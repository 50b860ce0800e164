package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent from config.yml and the environment.
const (
	defaultPort         = "8080"
	defaultDBPath       = "app.db"
	defaultLogLevel     = "info"
	defaultLogFormat    = "console"
	defaultWSPath       = "/api/ws"
	defaultSyncTimeout  = 2 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultTokenTTL     = time.Hour
	defaultSweepEvery   = time.Minute
)

// Config holds application configuration.
type Config struct {
	Port      string `mapstructure:"port"`
	DBPath    string `mapstructure:"db_path"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Address advertised to devices by /dispatch/device.
	ServerIP     string `mapstructure:"server_ip"`
	AdvertisedWS string `mapstructure:"ws_port"`
	WSPath       string `mapstructure:"ws_path"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	// MultiUser gates the API behind login and rejects unknown devices on register.
	MultiUser  bool          `mapstructure:"multi_user"`
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`

	SyncTimeout        time.Duration `mapstructure:"sync_timeout"`
	PingInterval       time.Duration `mapstructure:"ping_interval"`
	TimerEnabledOnWire bool          `mapstructure:"timer_enabled_on_wire"`

	// TimerSweepInterval is how often expired one-shot timers are pruned. 0 disables it.
	TimerSweepInterval time.Duration `mapstructure:"timer_sweep_interval"`
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// WSPort is the port devices are told to connect to. Falls back to the API port.
func (c *Config) WSPort() string {
	if c.AdvertisedWS != "" {
		return c.AdvertisedWS
	}
	return c.Port
}

var errMissingSigningKey = errors.New("multi_user requires signing_key")

// Load reads .env (if present), configs/config.yml (if present) and the
// environment, in increasing order of precedence.
func Load(paths ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
	v.SetDefault("server_ip", "")
	v.SetDefault("ws_port", "")
	v.SetDefault("ws_path", defaultWSPath)
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
	v.SetDefault("multi_user", false)
	v.SetDefault("signing_key", "")
	v.SetDefault("token_ttl", defaultTokenTTL)
	v.SetDefault("sync_timeout", defaultSyncTimeout)
	v.SetDefault("ping_interval", defaultPingInterval)
	v.SetDefault("timer_enabled_on_wire", false)
	v.SetDefault("timer_sweep_interval", defaultSweepEvery)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MultiUser && cfg.SigningKey == "" {
		return nil, errMissingSigningKey
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	return cfg, nil
}
