package models

import "github.com/shopspring/decimal"

// Trade is an open trade as reported by the risk service.
type Trade struct {
	Ticket    int64           `json:"ticket"`
	Symbol    string          `json:"symbol"`
	Type      string          `json:"type"` // buy, sell
	Volume    decimal.Decimal `json:"volume"`
	OpenPrice decimal.Decimal `json:"open_price"`
	Profit    decimal.Decimal `json:"profit"`
	RiskScore int             `json:"risk_score"`
	Session   string          `json:"session"` // London, NY, Asia
}

// PortfolioAccount is one account inside the portfolio aggregate.
type PortfolioAccount struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
	Equity  decimal.Decimal `json:"equity"`
	Status  string          `json:"status"`
}

// Exposure is the open volume on one symbol across accounts.
type Exposure struct {
	Long  decimal.Decimal `json:"long"`
	Short decimal.Decimal `json:"short"`
}

// LongShare returns the long fraction of the exposure in percent. An empty
// exposure yields 0.
func (e Exposure) LongShare() decimal.Decimal {
	total := e.Long.Add(e.Short)
	if total.IsZero() {
		return decimal.Zero
	}
	return e.Long.Div(total).Mul(decimal.NewFromInt(100))
}

// Portfolio aggregates every broker account of the user.
type Portfolio struct {
	TotalBalance        decimal.Decimal     `json:"total_balance"`
	TotalEquity         decimal.Decimal     `json:"total_equity"`
	TotalProfit         decimal.Decimal     `json:"total_profit"`
	AccountCount        int                 `json:"account_count"`
	Accounts            []PortfolioAccount  `json:"accounts"`
	CorrelationWarnings []string            `json:"correlation_warnings"`
	SymbolExposure      map[string]Exposure `json:"symbol_exposure"`
}
