package models

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	apperr "risklock/internal/errors"
)

// ProviderMetaAPI is the only broker bridge the service accepts.
const ProviderMetaAPI = "metaapi"

// BrokerPlatforms lists the trading platforms that can be connected.
var BrokerPlatforms = []string{"mt4", "mt5"}

// Broker is a connected broker account with its risk rules.
type Broker struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Platform         string `json:"platform"`
	AccountID        string `json:"account_id"`
	Provider         string `json:"provider,omitempty"`
	IsActive         bool   `json:"is_active"`
	IsLimited        bool   `json:"is_limited,omitempty"` // beyond the subscription's account limit
	ConnectionStatus string `json:"connection_status,omitempty"`

	DailyLossLimitPct   decimal.Decimal `json:"daily_loss_limit_pct"`
	MaxDrawdownLimitPct decimal.Decimal `json:"max_drawdown_limit_pct"`
	MaxDailyTrades      int             `json:"max_daily_trades"`
	MaxLotSize          decimal.Decimal `json:"max_lot_size"`
	NewsTradingAllowed  bool            `json:"news_trading_allowed"`
	PresetName          string          `json:"preset_name,omitempty"`
}

// Preset is a named prop firm rule set. Nil values leave the account's
// current setting in place when the preset is applied.
type Preset struct {
	Description         string           `json:"description"`
	DailyLossLimitPct   *decimal.Decimal `json:"daily_loss_limit_pct"`
	MaxDrawdownLimitPct *decimal.Decimal `json:"max_drawdown_limit_pct"`
	MaxDailyTrades      *int             `json:"max_daily_trades"`
	MaxLotSize          *decimal.Decimal `json:"max_lot_size"`
	NewsTradingAllowed  *bool            `json:"news_trading_allowed"`
}

// Presets maps preset names to their rules.
type Presets map[string]Preset

// Names returns the preset names in alphabetical order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BrokerConnectInput links a new broker account. The service verifies the
// credentials before saving and makes the new account the active one.
type BrokerConnectInput struct {
	Platform            string          `json:"platform"`
	Provider            string          `json:"provider"`
	AccountID           string          `json:"account_id"`
	Token               string          `json:"token"`
	Name                string          `json:"name,omitempty"`
	DailyLossLimitPct   decimal.Decimal `json:"daily_loss_limit_pct"`
	MaxDrawdownLimitPct decimal.Decimal `json:"max_drawdown_limit_pct"`
}

// NewBrokerConnectInput returns an input with the service's default limits.
func NewBrokerConnectInput() BrokerConnectInput {
	return BrokerConnectInput{
		Provider:            ProviderMetaAPI,
		DailyLossLimitPct:   decimal.NewFromInt(5),
		MaxDrawdownLimitPct: decimal.NewFromInt(10),
	}
}

// Validate checks the input before it is sent.
func (in BrokerConnectInput) Validate() error {
	if !contains(BrokerPlatforms, strings.ToLower(in.Platform)) {
		return apperr.NewValidationError("platform", in.Platform, "must be mt4 or mt5")
	}
	if in.Provider != ProviderMetaAPI {
		return apperr.NewValidationError("provider", in.Provider, "only metaapi is supported")
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return apperr.NewValidationError("account_id", in.AccountID, "is required")
	}
	if strings.TrimSpace(in.Token) == "" {
		return apperr.NewValidationError("token", "", "is required")
	}
	if err := validatePct("daily_loss_limit_pct", in.DailyLossLimitPct); err != nil {
		return err
	}
	return validatePct("max_drawdown_limit_pct", in.MaxDrawdownLimitPct)
}

// RiskSettingsUpdate is the risk rule patch of one broker account. A preset
// is applied first, then the explicit fields overwrite it.
type RiskSettingsUpdate struct {
	PresetName          *string          `json:"preset_name,omitempty"`
	DailyLossLimitPct   *decimal.Decimal `json:"daily_loss_limit_pct,omitempty"`
	MaxDrawdownLimitPct *decimal.Decimal `json:"max_drawdown_limit_pct,omitempty"`
	MaxDailyTrades      *int             `json:"max_daily_trades,omitempty"`
	MaxLotSize          *decimal.Decimal `json:"max_lot_size,omitempty"`
	NewsTradingAllowed  *bool            `json:"news_trading_allowed,omitempty"`
}

// Validate checks the patch before it is sent.
func (u RiskSettingsUpdate) Validate() error {
	if u == (RiskSettingsUpdate{}) {
		return apperr.NewValidationError("risk_settings", nil, "nothing to update")
	}
	if u.DailyLossLimitPct != nil {
		if err := validatePct("daily_loss_limit_pct", *u.DailyLossLimitPct); err != nil {
			return err
		}
	}
	if u.MaxDrawdownLimitPct != nil {
		if err := validatePct("max_drawdown_limit_pct", *u.MaxDrawdownLimitPct); err != nil {
			return err
		}
	}
	if u.MaxDailyTrades != nil && *u.MaxDailyTrades < 0 {
		return apperr.NewValidationError("max_daily_trades", *u.MaxDailyTrades, "must not be negative")
	}
	if u.MaxLotSize != nil && !u.MaxLotSize.IsPositive() {
		return apperr.NewValidationError("max_lot_size", u.MaxLotSize.String(), "must be positive")
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

func validatePct(field string, v decimal.Decimal) error {
	if !v.IsPositive() || v.GreaterThan(hundred) {
		return apperr.NewValidationError(field, v.String(), "must be above 0 and at most 100")
	}
	return nil
}
