package display

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"risklock/internal/models"
	"risklock/internal/resolver"
	"risklock/pkg/utils"
)

func (r *Renderer) table(headers []string, rows [][]string, tone func(row, col int) resolver.Tone) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			if tone != nil {
				if tn := tone(row, col); tn != resolver.ToneNeutral {
					return s.Inherit(r.theme.Tone(tn))
				}
			}
			return s
		})
	if r.theme.color {
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(colorNeutral))
	}
	return t.String()
}

func profitTone(p decimal.Decimal) resolver.Tone {
	switch {
	case p.IsNegative():
		return resolver.ToneDanger
	case p.IsPositive():
		return resolver.ToneSafe
	}
	return resolver.ToneNeutral
}

func riskScoreTone(score int) resolver.Tone {
	switch {
	case score > 70:
		return resolver.ToneDanger
	case score > 40:
		return resolver.ToneWarning
	}
	return resolver.ToneSafe
}

// RenderTrades draws the open trades table.
func (r *Renderer) RenderTrades(trades []models.Trade, width int) string {
	return r.trades(trades, "", clampWidth(width))
}

func (r *Renderer) trades(trades []models.Trade, errText string, width int) string {
	heading := r.theme.Heading.Render(fmt.Sprintf("Open Trades (%d)", len(trades)))
	if errText != "" {
		return heading + "\n" + r.theme.Tone(resolver.ToneWarning).Render(errText)
	}
	if len(trades) == 0 {
		return heading + "\n" + r.theme.Dim.Render("No open trades.")
	}

	headers := []string{"Ticket", "Symbol", "Type", "Volume", "Open", "Profit", "Risk", "Session"}
	rows := make([][]string, len(trades))
	for i, t := range trades {
		rows[i] = []string{
			strconv.FormatInt(t.Ticket, 10),
			t.Symbol,
			strings.ToUpper(t.Type),
			utils.FormatLots(t.Volume),
			t.OpenPrice.String(),
			utils.FormatSignedDollars(t.Profit),
			strconv.Itoa(t.RiskScore),
			t.Session,
		}
	}
	tbl := r.table(headers, rows, func(row, col int) resolver.Tone {
		if row < 0 || row >= len(trades) {
			return resolver.ToneNeutral
		}
		switch col {
		case 5:
			return profitTone(trades[row].Profit)
		case 6:
			return riskScoreTone(trades[row].RiskScore)
		}
		return resolver.ToneNeutral
	})
	return heading + "\n" + tbl
}

// RenderPortfolio draws the cross-account aggregate.
func (r *Renderer) RenderPortfolio(p models.Portfolio, width int) string {
	width = clampWidth(width)
	sections := []string{r.theme.Title.Render("Portfolio")}

	totals := strings.Join([]string{
		fmt.Sprintf("Accounts %d", p.AccountCount),
		"Balance  " + utils.FormatDollars(p.TotalBalance),
		"Equity   " + utils.FormatDollars(p.TotalEquity),
		"Profit   " + r.theme.Tone(profitTone(p.TotalProfit)).Render(utils.FormatSignedDollars(p.TotalProfit)),
	}, "\n")
	sections = append(sections, r.theme.Panel.Width(width-2).Render(totals))

	if len(p.Accounts) > 0 {
		rows := make([][]string, len(p.Accounts))
		for i, a := range p.Accounts {
			rows[i] = []string{a.Name, utils.FormatDollars(a.Balance), utils.FormatDollars(a.Equity), a.Status}
		}
		sections = append(sections, r.theme.Heading.Render("Accounts"), r.table([]string{"Name", "Balance", "Equity", "Status"}, rows, nil))
	}

	if len(p.CorrelationWarnings) > 0 {
		lines := []string{r.theme.Heading.Render("Correlation Warnings")}
		for _, w := range p.CorrelationWarnings {
			lines = append(lines, r.theme.Tone(resolver.ToneWarning).Render("! ")+w)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(p.SymbolExposure) > 0 {
		symbols := make([]string, 0, len(p.SymbolExposure))
		for s := range p.SymbolExposure {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		lines := []string{r.theme.Heading.Render("Exposure (long / short)")}
		for _, s := range symbols {
			e := p.SymbolExposure[s]
			long := e.LongShare().InexactFloat64()
			lines = append(lines, fmt.Sprintf("%-10s %s %3.0f%% long  %s / %s",
				s, r.split(long), long, utils.FormatLots(e.Long), utils.FormatLots(e.Short)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// split draws a long/short share bar.
func (r *Renderer) split(longPct float64) string {
	filled := int(longPct/100*barWidth + 0.5)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return r.theme.Tone(resolver.ToneSafe).Render(strings.Repeat("█", filled)) +
		r.theme.Tone(resolver.ToneDanger).Render(strings.Repeat("█", barWidth-filled))
}
