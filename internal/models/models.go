// Package models provides the data model shared by the risk service client,
// the poller and the presentation resolver.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperr "risklock/internal/errors"
)

// MockLogin is the login the risk service reports when no real broker is linked.
const MockLogin int64 = 12345678

// MockPlatform is the platform value reported when the broker link could not be built.
const MockPlatform = "error"

// RiskStatus is the risk classification computed by the remote risk service.
type RiskStatus string

const (
	RiskSafe     RiskStatus = "safe"
	RiskWarning  RiskStatus = "warning"
	RiskCritical RiskStatus = "critical"
	RiskBreach   RiskStatus = "breach"
)

// RiskStatuses lists every status in increasing severity.
var RiskStatuses = []RiskStatus{RiskSafe, RiskWarning, RiskCritical, RiskBreach}

// ParseRiskStatus parses a status string. Unknown values are an error so a new
// backend status can never be mistaken for a normal one.
func ParseRiskStatus(s string) (RiskStatus, error) {
	switch RiskStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RiskSafe:
		return RiskSafe, nil
	case RiskWarning:
		return RiskWarning, nil
	case RiskCritical:
		return RiskCritical, nil
	case RiskBreach:
		return RiskBreach, nil
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrUnknownRiskStatus, s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *RiskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRiskStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Severity orders statuses: safe=0 ... breach=3.
func (s RiskStatus) Severity() int {
	switch s {
	case RiskSafe:
		return 0
	case RiskWarning:
		return 1
	case RiskCritical:
		return 2
	case RiskBreach:
		return 3
	}
	return -1
}

// ConnectionStatus is the health of the broker link, independent of risk.
type ConnectionStatus string

const (
	ConnectionOK    ConnectionStatus = "ok"
	ConnectionError ConnectionStatus = "error"
)

// UnmarshalJSON implements json.Unmarshaler. Only "error" marks a broken link;
// "ok", "connected" and missing values are healthy.
func (c *ConnectionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(raw), string(ConnectionError)) {
		*c = ConnectionError
	} else {
		*c = ConnectionOK
	}
	return nil
}

// IsError returns true when the broker link is down.
func (c ConnectionStatus) IsError() bool {
	return c == ConnectionError
}

// Account is the broker account summary.
type Account struct {
	Balance  decimal.Decimal `json:"balance"`
	Equity   decimal.Decimal `json:"equity"`
	Profit   decimal.Decimal `json:"profit"`
	Currency string          `json:"currency,omitempty"`
	Platform string          `json:"platform"`
	Login    int64           `json:"login"`
}

// IsMock reports whether the account is the simulated stand-in used when no
// real broker is connected.
func (a Account) IsMock() bool {
	return a.Platform == MockPlatform || a.Login == MockLogin
}

// RiskMetrics holds the limit and buffer figures of a risk report.
type RiskMetrics struct {
	Buffer          decimal.Decimal `json:"buffer"`
	BufferPct       decimal.Decimal `json:"buffer_pct"`
	OverallDrawdown decimal.Decimal `json:"overall_drawdown"`
	OverallLimit    decimal.Decimal `json:"overall_limit"`
	DailyLimit      decimal.Decimal `json:"daily_limit"`
	TradesToBreach  int             `json:"trades_to_breach"`
}

// Risk is the risk report for the active account.
type Risk struct {
	Status     RiskStatus  `json:"status"`
	Violations []string    `json:"violations"`
	Metrics    RiskMetrics `json:"metrics"`
}

// DailyStats holds intraday figures.
type DailyStats struct {
	DailyProfit decimal.Decimal `json:"daily_profit"`
	DailyVolume decimal.Decimal `json:"daily_volume"`
	TradesCount int             `json:"trades_count"`
}

// SyncState is the freshness of the broker data behind a snapshot.
type SyncState string

const (
	SyncLive     SyncState = "LIVE"
	SyncDegraded SyncState = "DEGRADED"
	SyncStale    SyncState = "STALE"
	SyncPaused   SyncState = "PAUSED"
)

// Timestamp accepts RFC 3339 as well as the zone-less ISO 8601 form the risk
// service emits; zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// SyncStatus describes how the service last synchronised with the broker.
type SyncStatus struct {
	Status    SyncState  `json:"status"`
	LastSync  *Timestamp `json:"last_sync"`
	LatencyMS int        `json:"latency_ms"`
	DemoMode  bool       `json:"demo_mode"`
}

// Onboarding reports which onboarding milestones the service has recorded.
type Onboarding struct {
	HasAccount bool `json:"has_account"`
	HasPreset  bool `json:"has_preset"`
	HasAlerts  bool `json:"has_alerts"`
	HasReport  bool `json:"has_report"`
}

// InsightFlag is a behavioural warning raised by the analytics engine.
type InsightFlag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SessionPerformance is the per-market-session aggregate.
type SessionPerformance struct {
	Count  int             `json:"count"`
	Profit decimal.Decimal `json:"profit"`
}

// Intelligence is the behavioural analytics payload. It is displayed, never
// interpreted.
type Intelligence struct {
	Flags              []InsightFlag                 `json:"flags"`
	SessionPerformance map[string]SessionPerformance `json:"session_performance"`
	Score              json.RawMessage               `json:"score,omitempty"`
}

// ScoreText returns the score as display text. The service sends a number for
// paid tiers and a string for the free tier.
func (i Intelligence) ScoreText() string {
	raw := bytes.TrimSpace(i.Score)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Snapshot is one complete overview payload. It is replaced wholesale on
// every poll and never mutated.
type Snapshot struct {
	Account          Account          `json:"account"`
	Risk             Risk             `json:"risk"`
	DailyStats       DailyStats       `json:"daily_stats"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`
	SyncStatus       SyncStatus       `json:"sync_status"`
	Onboarding       Onboarding       `json:"onboarding"`
	Intelligence     Intelligence     `json:"intelligence"`
}

// Clone returns a deep copy so consumers can hold a snapshot by value without
// sharing slices or maps with the poller.
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Risk.Violations != nil {
		c.Risk.Violations = append([]string(nil), s.Risk.Violations...)
	}
	if s.SyncStatus.LastSync != nil {
		t := *s.SyncStatus.LastSync
		c.SyncStatus.LastSync = &t
	}
	if s.Intelligence.Flags != nil {
		c.Intelligence.Flags = append([]InsightFlag(nil), s.Intelligence.Flags...)
	}
	if s.Intelligence.SessionPerformance != nil {
		c.Intelligence.SessionPerformance = make(map[string]SessionPerformance, len(s.Intelligence.SessionPerformance))
		for k, v := range s.Intelligence.SessionPerformance {
			c.Intelligence.SessionPerformance[k] = v
		}
	}
	if s.Intelligence.Score != nil {
		c.Intelligence.Score = append(json.RawMessage(nil), s.Intelligence.Score...)
	}
	return c
}

// Validate checks the fields the resolver depends on.
func (s Snapshot) Validate() error {
	if s.Risk.Status.Severity() < 0 {
		return fmt.Errorf("%w: %q", apperr.ErrUnknownRiskStatus, string(s.Risk.Status))
	}
	return nil
}
