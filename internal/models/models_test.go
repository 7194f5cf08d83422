package models

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "risklock/internal/errors"
)

const overviewJSON = `{
	"account": {"balance": 10000, "equity": 10150.5, "profit": 150.5, "currency": "USD", "login": 555, "platform": "MT5"},
	"risk": {
		"status": "safe",
		"violations": [],
		"metrics": {"buffer": 800, "buffer_pct": 80, "overall_drawdown": 200, "overall_limit": 1000, "daily_limit": 500, "trades_to_breach": 12}
	},
	"daily_stats": {"daily_profit": 150.5, "daily_volume": 2.5, "trades_count": 3},
	"connection_status": "connected",
	"sync_status": {"status": "LIVE", "last_sync": "2026-10-17T09:30:00.123456", "latency_ms": 150},
	"intelligence": {
		"flags": [{"type": "OVERTRADING", "severity": "warning", "message": "6 trades in 30 minutes"}],
		"session_performance": {"London": {"count": 2, "profit": 120}},
		"score": 80
	},
	"onboarding": {"has_account": true, "has_preset": true, "has_alerts": true, "has_report": false}
}`

func TestSnapshotDecode(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(overviewJSON), &s))
	require.NoError(t, s.Validate())

	assert.Equal(t, RiskSafe, s.Risk.Status)
	assert.Equal(t, ConnectionOK, s.ConnectionStatus)
	assert.False(t, s.ConnectionStatus.IsError())
	assert.Equal(t, "150.50", s.DailyStats.DailyProfit.StringFixed(2))
	assert.Equal(t, 12, s.Risk.Metrics.TradesToBreach)
	assert.Equal(t, SyncLive, s.SyncStatus.Status)
	require.NotNil(t, s.SyncStatus.LastSync)
	assert.Equal(t, 9, s.SyncStatus.LastSync.Hour())
	assert.Equal(t, "80", s.Intelligence.ScoreText())
	assert.False(t, s.Account.IsMock())
}

func TestSnapshotDecodeRejectsUnknownStatus(t *testing.T) {
	payload := `{"risk": {"status": "liquidated", "violations": [], "metrics": {}}}`
	var s Snapshot
	err := json.Unmarshal([]byte(payload), &s)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrUnknownRiskStatus))
}

func TestSnapshotValidateMissingStatus(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"account": {"login": 1}}`), &s))
	assert.ErrorIs(t, s.Validate(), apperr.ErrUnknownRiskStatus)
}

func TestConnectionStatusDecode(t *testing.T) {
	for raw, want := range map[string]ConnectionStatus{
		`"ok"`:        ConnectionOK,
		`"connected"`: ConnectionOK,
		`"error"`:     ConnectionError,
		`"ERROR"`:     ConnectionError,
		`null`:        ConnectionOK,
	} {
		var c ConnectionStatus
		require.NoError(t, json.Unmarshal([]byte(raw), &c), raw)
		assert.Equal(t, want, c, raw)
	}
}

func TestScoreText(t *testing.T) {
	assert.Equal(t, "Upgrade to Pro", Intelligence{Score: json.RawMessage(`"Upgrade to Pro"`)}.ScoreText())
	assert.Equal(t, "", Intelligence{Score: json.RawMessage(`null`)}.ScoreText())
	assert.Equal(t, "", Intelligence{}.ScoreText())
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(overviewJSON), &s))
	s.Risk.Violations = []string{"Daily loss limit exceeded"}

	c := s.Clone()
	c.Risk.Violations[0] = "changed"
	c.Intelligence.SessionPerformance["NY"] = SessionPerformance{Count: 1}
	c.Intelligence.Flags[0].Message = "changed"

	assert.Equal(t, "Daily loss limit exceeded", s.Risk.Violations[0])
	assert.NotContains(t, s.Intelligence.SessionPerformance, "NY")
	assert.Equal(t, "6 trades in 30 minutes", s.Intelligence.Flags[0].Message)
}

// Property: IsMock is true iff platform == "error" or login == 12345678.
func TestProperty_IsMockSentinels(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	platformGen := gen.OneConstOf("MT5", "mt5", "MT4", "ctrader", "error", "Error", "")
	loginGen := gen.OneGenOf(gen.Const(MockLogin), gen.Int64Range(0, 99999999))

	properties.Property("IsMock matches the sentinel rule", prop.ForAll(
		func(platform string, login int64) bool {
			a := Account{Platform: platform, Login: login}
			want := platform == "error" || login == 12345678
			return a.IsMock() == want
		},
		platformGen,
		loginGen,
	))

	properties.TestingRun(t)
}

func TestParseRiskStatusSeverityOrder(t *testing.T) {
	for i, s := range RiskStatuses {
		parsed, err := ParseRiskStatus(" " + string(s) + " ")
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
		assert.Equal(t, i, parsed.Severity())
	}
	_, err := ParseRiskStatus("danger")
	assert.ErrorIs(t, err, apperr.ErrUnknownRiskStatus)
	assert.Equal(t, -1, RiskStatus("danger").Severity())
}

func TestExposureLongShare(t *testing.T) {
	e := Exposure{Long: decimal.NewFromFloat(1.5), Short: decimal.NewFromFloat(0.5)}
	assert.Equal(t, "75", e.LongShare().String())
	assert.True(t, Exposure{}.LongShare().IsZero())
}

func TestFeedbackInputValidate(t *testing.T) {
	valid := FeedbackInput{Type: FeedbackComplaint, Title: "Lock too late", Description: "Breach overlay appeared after the next trade", Severity: "High", Category: "Risk"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		field string
		mod   func(*FeedbackInput)
	}{
		{"bad type", "type", func(in *FeedbackInput) { in.Type = "BUG" }},
		{"blank title", "title", func(in *FeedbackInput) { in.Title = "  " }},
		{"blank description", "description", func(in *FeedbackInput) { in.Description = "" }},
		{"bad severity", "severity", func(in *FeedbackInput) { in.Severity = "Extreme" }},
		{"bad category", "category", func(in *FeedbackInput) { in.Category = "Billing" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mod(&in)
			err := in.Validate()
			var vErr *apperr.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestFeedbackUpdateValidate(t *testing.T) {
	assert.Error(t, FeedbackUpdate{}.Validate())

	planned := FeedbackPlanned
	assert.NoError(t, FeedbackUpdate{Status: &planned}.Validate())

	bogus := FeedbackStatus("DONE")
	assert.Error(t, FeedbackUpdate{Status: &bogus}.Validate())

	notes := "shipping next sprint"
	assert.NoError(t, FeedbackUpdate{AdminNotes: &notes}.Validate())
}

func TestBrokerConnectInputValidate(t *testing.T) {
	valid := NewBrokerConnectInput()
	valid.Platform = "MT5"
	valid.AccountID = "7001"
	valid.Token = "secret"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*BrokerConnectInput)
	}{
		{"platform", func(in *BrokerConnectInput) { in.Platform = "ctrader" }},
		{"provider", func(in *BrokerConnectInput) { in.Provider = "direct" }},
		{"account", func(in *BrokerConnectInput) { in.AccountID = " " }},
		{"token", func(in *BrokerConnectInput) { in.Token = "" }},
		{"zero daily loss", func(in *BrokerConnectInput) { in.DailyLossLimitPct = decimal.Zero }},
		{"drawdown above 100", func(in *BrokerConnectInput) { in.MaxDrawdownLimitPct = decimal.NewFromInt(101) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.ErrInputValidation))
		})
	}
}

func TestProperty_RiskSettingsPctBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("percent limits are accepted only in (0, 100]", prop.ForAll(
		func(cents int64) bool {
			v := decimal.New(cents, -2)
			err := RiskSettingsUpdate{DailyLossLimitPct: &v}.Validate()
			inRange := cents > 0 && cents <= 10000
			return (err == nil) == inRange
		},
		gen.Int64Range(-5000, 20000),
	))
	properties.TestingRun(t)
}

func TestPresetsNamesSorted(t *testing.T) {
	var p Presets
	require.NoError(t, json.Unmarshal([]byte(`{"Topstep": {"description": "b"}, "FTMO": {"description": "a", "max_lot_size": null}}`), &p))
	assert.Equal(t, []string{"FTMO", "Topstep"}, p.Names())
	assert.Nil(t, p["FTMO"].MaxLotSize)
	assert.Error(t, RiskSettingsUpdate{}.Validate())
}
