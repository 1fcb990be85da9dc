// Package config loads listener configuration from a TOML file and environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// HomeEnv names the environment variable that overrides the home directory.
const HomeEnv = "MPESA_HOME"

const (
	// OraclePolicy reads grants from the policy file under the home directory.
	OraclePolicy = "policy"
	// OracleDevice checks read access to a modem device node.
	OracleDevice = "device"
	// OracleStatic always answers with capability.granted.
	OracleStatic = "static"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the runtime configuration loaded from defaults, config.toml, and env vars.
type Config struct {
	// HomeDir is runtime-resolved from MPESA_HOME and not read from config.
	HomeDir    string           `mapstructure:"-"`
	Log        LogConfig        `mapstructure:"log"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Sinks      SinksConfig      `mapstructure:"sinks"`
	Probe      ProbeConfig      `mapstructure:"probe"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CapabilityConfig selects the oracle answering capability checks.
type CapabilityConfig struct {
	Oracle  string `mapstructure:"oracle"`
	Device  string `mapstructure:"device"`
	Granted bool   `mapstructure:"granted"`
}

// WebhookConfig configures the HTTP delivery source.
type WebhookConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	Secret          string        `mapstructure:"secret"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SinksConfig configures where matching messages are forwarded.
type SinksConfig struct {
	Console   ConsoleSinkConfig   `mapstructure:"console"`
	WebSocket WebSocketSinkConfig `mapstructure:"websocket"`
	Telegram  TelegramSinkConfig  `mapstructure:"telegram"`
}

// ConsoleSinkConfig prints notifications to stdout.
type ConsoleSinkConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WebSocketSinkConfig streams notifications to connected clients.
type WebSocketSinkConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TelegramSinkConfig forwards notifications to one Telegram chat.
type TelegramSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
	Title   string `mapstructure:"title"`
}

// ProbeConfig schedules periodic capability checks.
type ProbeConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

var defaultConfig = Config{
	Log: LogConfig{
		Level:  "info",
		Format: LogFormatText,
	},
	Capability: CapabilityConfig{
		Oracle: OraclePolicy,
		Device: "/dev/ttyUSB0",
	},
	Webhook: WebhookConfig{
		Enabled:         true,
		Addr:            "127.0.0.1:8787",
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 5 * time.Second,
	},
	Sinks: SinksConfig{
		Console: ConsoleSinkConfig{Enabled: true},
		WebSocket: WebSocketSinkConfig{
			Enabled:      false,
			WriteTimeout: 10 * time.Second,
		},
		Telegram: TelegramSinkConfig{
			Enabled: false,
			Title:   "M-PESA",
		},
	},
	Probe: ProbeConfig{
		Enabled:  true,
		Schedule: "@every 5m",
	},
}

// defaultUserConfig is the bootstrap config written for first-time users.
// It holds only the user-editable essentials.
var defaultUserConfig = Config{
	Capability: CapabilityConfig{Oracle: OraclePolicy},
	Webhook: WebhookConfig{
		Enabled: true,
		Addr:    "127.0.0.1:8787",
		Secret:  "$MPESA_WEBHOOK_SECRET",
	},
	Sinks: SinksConfig{
		Console: ConsoleSinkConfig{Enabled: true},
		Telegram: TelegramSinkConfig{
			Enabled: false,
			Token:   "$MPESA_TELEGRAM_TOKEN",
		},
	},
}

// homeDir returns MPESA_HOME if set, otherwise ~/.mpesa.
func homeDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return defaultHomePath(home), nil
}

// HomeDir returns the resolved home directory.
func HomeDir() (string, error) {
	return homeDir()
}

// Load merges hardcoded defaults and config file values in that order.
// Config is always at $MPESA_HOME/config.toml.
func Load() (*Config, error) {
	homeDir, err := homeDir()
	if err != nil {
		return nil, err
	}

	v, err := readViper(homeDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = homeDir

	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by user config)
// to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	homeDir, err := homeDir()
	if err != nil {
		return err
	}
	v, err := readViper(homeDir)
	if err != nil {
		return err
	}

	// Keep duration fields human-readable in generated TOML.
	for _, key := range []string{"webhook.shutdown_timeout", "sinks.websocket.write_timeout"} {
		v.Set(key, v.GetDuration(key).String())
	}

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultUserConfigTOML renders the bootstrap user config as TOML.
func DefaultUserConfigTOML() (string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.Set("capability.oracle", defaultUserConfig.Capability.Oracle)
	v.Set("webhook.enabled", defaultUserConfig.Webhook.Enabled)
	v.Set("webhook.addr", defaultUserConfig.Webhook.Addr)
	v.Set("webhook.secret", defaultUserConfig.Webhook.Secret)
	v.Set("sinks.console.enabled", defaultUserConfig.Sinks.Console.Enabled)
	v.Set("sinks.telegram.enabled", defaultUserConfig.Sinks.Telegram.Enabled)
	v.Set("sinks.telegram.token", defaultUserConfig.Sinks.Telegram.Token)
	v.Set("sinks.telegram.chat_id", defaultUserConfig.Sinks.Telegram.ChatID)

	var out bytes.Buffer
	if err := v.WriteConfigTo(&out); err != nil {
		return "", fmt.Errorf("write default user config: %w", err)
	}
	return out.String(), nil
}

func readViper(homeDir string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", defaultConfig.Log.Level)
	v.SetDefault("log.format", defaultConfig.Log.Format)

	v.SetDefault("capability.oracle", defaultConfig.Capability.Oracle)
	v.SetDefault("capability.device", defaultConfig.Capability.Device)
	v.SetDefault("capability.granted", defaultConfig.Capability.Granted)

	v.SetDefault("webhook.enabled", defaultConfig.Webhook.Enabled)
	v.SetDefault("webhook.addr", defaultConfig.Webhook.Addr)
	v.SetDefault("webhook.secret", defaultConfig.Webhook.Secret)
	v.SetDefault("webhook.max_body_bytes", defaultConfig.Webhook.MaxBodyBytes)
	v.SetDefault("webhook.shutdown_timeout", defaultConfig.Webhook.ShutdownTimeout)

	v.SetDefault("sinks.console.enabled", defaultConfig.Sinks.Console.Enabled)
	v.SetDefault("sinks.websocket.enabled", defaultConfig.Sinks.WebSocket.Enabled)
	v.SetDefault("sinks.websocket.write_timeout", defaultConfig.Sinks.WebSocket.WriteTimeout)
	v.SetDefault("sinks.telegram.enabled", defaultConfig.Sinks.Telegram.Enabled)
	v.SetDefault("sinks.telegram.token", defaultConfig.Sinks.Telegram.Token)
	v.SetDefault("sinks.telegram.chat_id", defaultConfig.Sinks.Telegram.ChatID)
	v.SetDefault("sinks.telegram.title", defaultConfig.Sinks.Telegram.Title)

	v.SetDefault("probe.enabled", defaultConfig.Probe.Enabled)
	v.SetDefault("probe.schedule", defaultConfig.Probe.Schedule)
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
