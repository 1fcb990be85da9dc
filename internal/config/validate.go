package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

// ValidationReport carries non-fatal findings from ValidateStartup.
type ValidationReport struct {
	Warnings []string
}

func (c LogConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "", LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("invalid format %q (allowed: %q, %q)", c.Format, LogFormatText, LogFormatJSON)
	}
	return nil
}

func (c CapabilityConfig) Validate() error {
	switch c.Oracle {
	case OraclePolicy, OracleStatic:
		return nil
	case OracleDevice:
		if strings.TrimSpace(c.Device) == "" {
			return errors.New("device is required when oracle=device")
		}
		return nil
	default:
		return fmt.Errorf("invalid oracle %q (allowed: %q, %q, %q)", c.Oracle, OraclePolicy, OracleDevice, OracleStatic)
	}
}

func (c WebhookConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required when enabled=true")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be > 0")
	}
	return nil
}

func (c TelegramSinkConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" {
		return errors.New("token is required when enabled=true")
	}
	if c.ChatID == 0 {
		return errors.New("chat_id is required when enabled=true")
	}
	return nil
}

func (c WebSocketSinkConfig) Validate() error {
	if c.Enabled && c.WriteTimeout <= 0 {
		return errors.New("write_timeout must be > 0")
	}
	return nil
}

func (c ProbeConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}
	return nil
}

// ValidateStartup validates startup configuration and returns warning messages.
func ValidateStartup(cfg *Config) (*ValidationReport, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	var errs []error
	report := &ValidationReport{}

	sections := []struct {
		name string
		v    Validatable
	}{
		{"log", cfg.Log},
		{"capability", cfg.Capability},
		{"webhook", cfg.Webhook},
		{"sinks.websocket", cfg.Sinks.WebSocket},
		{"sinks.telegram", cfg.Sinks.Telegram},
		{"probe", cfg.Probe},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	if cfg.Sinks.WebSocket.Enabled && !cfg.Webhook.Enabled {
		errs = append(errs, errors.New("sinks.websocket: requires webhook.enabled=true"))
	}
	if cfg.Webhook.Enabled && cfg.Webhook.Secret == "" {
		report.Warnings = append(report.Warnings, "webhook.secret is empty; deliveries are not authenticated")
	}
	if !cfg.Sinks.Console.Enabled && !cfg.Sinks.WebSocket.Enabled && !cfg.Sinks.Telegram.Enabled {
		report.Warnings = append(report.Warnings, "no sinks are enabled; matching messages will be dropped")
	}
	if cfg.Capability.Oracle == OracleStatic {
		report.Warnings = append(report.Warnings, "capability.oracle is static; checks do not reflect the host")
	}

	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}
