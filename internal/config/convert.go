package config

import (
	"time"

	"github.com/openg2/g2ctl/internal/device"
	"github.com/openg2/g2ctl/internal/textpage"
)

// DevicePacing converts the configured write interval into device pacing,
// keeping the default settle behavior.
func (cfg Config) DevicePacing() device.Pacing {
	return device.Pacing{
		WriteInterval: time.Duration(cfg.Pacing.WriteIntervalMS) * time.Millisecond,
		SettleScale:   1.0,
	}
}

// TextProfile resolves the configured script profile. Validate has already
// rejected unknown names.
func (cfg Config) TextProfile() textpage.Profile {
	if cfg.Text.Profile == "cjk" {
		return textpage.CJK
	}
	return textpage.Latin
}
