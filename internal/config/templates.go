package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# RiskLock terminal configuration

[api]
# Base URL of the RiskLock risk service
base_url = "http://localhost:8000/api"
# Per-request timeout; a poll that exceeds it counts as failed
timeout = "15s"

[dashboard]
# Delay between the end of one overview fetch and the start of the next
poll_interval = "5s"
trades_poll_interval = "5s"
# Keep the error page up until you reload, even if a later poll succeeds
sticky_errors = false

[ui]
color_enabled = true
width = 96

[notifications]
# Publish dashboard transitions (lock, connection freeze, status changes)
enabled = false
# all, risk_only, errors_only
level = "risk_only"
# nats_url = "nats://127.0.0.1:4222"
nats_subject = "risklock.dashboard"
# webhook_url = "https://hooks.example.com/risklock"

[cache]
# Mirror the latest snapshot for 'risklock status --cached'; empty means in-process only
# redis_url = "redis://127.0.0.1:6379/0"
ttl = "10s"

[logging]
level = "info"
# audit_file = "" disables the action audit trail
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
