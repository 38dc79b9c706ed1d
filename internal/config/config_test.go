package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openg2/g2ctl/internal/textpage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "g2ctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[right]
address = "AA:BB:CC:DD:EE:02"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Adapter != "hci0" {
		t.Fatalf("adapter default %q", cfg.Adapter)
	}
	if cfg.Text.Profile != "latin" {
		t.Fatalf("profile default %q", cfg.Text.Profile)
	}
	if cfg.Server.Addr != ":9800" {
		t.Fatalf("server addr default %q", cfg.Server.Addr)
	}
	if cfg.Pacing.WriteIntervalMS != 20 {
		t.Fatalf("pacing default %d", cfg.Pacing.WriteIntervalMS)
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := writeConfig(t, `
[right]
address = "not-a-mac"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "MAC address") {
		t.Fatalf("expected MAC validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	path := writeConfig(t, `
[right]
address = "AA:BB:CC:DD:EE:02"

[text]
profile = "klingon"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "text profile") {
		t.Fatalf("expected profile error, got %v", err)
	}
}

func TestLoadRequiresADevice(t *testing.T) {
	path := writeConfig(t, `adapter = "hci1"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "device address") {
		t.Fatalf("expected device requirement error, got %v", err)
	}
}

func TestConverters(t *testing.T) {
	cfg := Config{
		Text:   TextConfig{Profile: "cjk"},
		Pacing: PacingConfig{WriteIntervalMS: 50},
	}
	if got := cfg.TextProfile(); got != textpage.CJK {
		t.Fatalf("profile %+v", got)
	}
	if got := cfg.DevicePacing(); got.WriteInterval != 50*time.Millisecond || got.SettleScale != 1.0 {
		t.Fatalf("pacing %+v", got)
	}
}

func TestWriteTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g2ctl.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if cfg.Left.Address == "" || cfg.Right.Address == "" {
		t.Fatalf("template devices missing: %+v", cfg)
	}
}
