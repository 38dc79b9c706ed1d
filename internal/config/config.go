package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration: the device pair, text profile,
// notification identity, pacing, and the HTTP surface.
type Config struct {
	Adapter string       `toml:"adapter"`
	Left    DeviceConfig `toml:"left"`
	Right   DeviceConfig `toml:"right"`
	Text    TextConfig   `toml:"text"`
	Notify  NotifyConfig `toml:"notify"`
	Pacing  PacingConfig `toml:"pacing"`
	Server  ServerConfig `toml:"server"`
}

type DeviceConfig struct {
	Address string `toml:"address"`
}

type TextConfig struct {
	Profile string `toml:"profile"`
}

type NotifyConfig struct {
	AppIdentifier string `toml:"app_identifier"`
	DisplayName   string `toml:"display_name"`
}

type PacingConfig struct {
	WriteIntervalMS int `toml:"write_interval_ms"`
}

type ServerConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
}

func Load(path string) (Config, error) {
	var cfg Config
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Adapter == "" {
		cfg.Adapter = "hci0"
	}
	if cfg.Text.Profile == "" {
		cfg.Text.Profile = "latin"
	}
	if cfg.Notify.AppIdentifier == "" {
		cfg.Notify.AppIdentifier = "dev.g2ctl"
	}
	if cfg.Notify.DisplayName == "" {
		cfg.Notify.DisplayName = "g2ctl"
	}
	if cfg.Pacing.WriteIntervalMS == 0 {
		cfg.Pacing.WriteIntervalMS = 20
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":9800"
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Left.Address) == "" && strings.TrimSpace(cfg.Right.Address) == "" {
		return fmt.Errorf("config needs at least one device address")
	}
	for _, dev := range []struct {
		name string
		addr string
	}{{"left", cfg.Left.Address}, {"right", cfg.Right.Address}} {
		if dev.addr == "" {
			continue
		}
		if !validMAC(dev.addr) {
			return fmt.Errorf("%s device address %q is not a MAC address", dev.name, dev.addr)
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Text.Profile)) {
	case "latin", "cjk":
	default:
		return fmt.Errorf("unknown text profile: %s", cfg.Text.Profile)
	}
	if cfg.Pacing.WriteIntervalMS < 0 {
		return fmt.Errorf("pacing write_interval_ms must not be negative")
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return fmt.Errorf("config missing server addr")
	}
	return nil
}

func validMAC(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 6 {
		return false
	}
	for _, p := range parts {
		if len(p) != 2 {
			return false
		}
		for _, c := range p {
			if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
				return false
			}
		}
	}
	return true
}
