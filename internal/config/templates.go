package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes a starter config to path, refusing to clobber an
// existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(daemonTemplate), 0o600)
}

const daemonTemplate = `adapter = "hci0"

[left]
address = "AA:BB:CC:DD:EE:01"

[right]
address = "AA:BB:CC:DD:EE:02"

[text]
# "latin" (25 chars/line) or "cjk" (12 chars/line)
profile = "latin"

[notify]
app_identifier = "dev.g2ctl"
display_name = "g2ctl"

[pacing]
write_interval_ms = 20

[server]
addr = ":9800"
cors_origins = ["http://localhost:3000"]
# auth_token = "change-me"
`
