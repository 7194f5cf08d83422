package resolver

import "risklock/internal/models"

// Tone is the visual severity of an element.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneSafe    Tone = "safe"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// RiskBanner is the always-present status block for the risk status.
type RiskBanner struct {
	Status models.RiskStatus
	// Label is the short status word, e.g. PROTECTED.
	Label       string
	Title       string
	Tone        Tone
	Pulse       bool
	Violations  []string
	Explanation string
	Advice      []string
}

func riskBanner(r models.Risk) (RiskBanner, bool) {
	b := RiskBanner{
		Status:     r.Status,
		Violations: append([]string(nil), r.Violations...),
	}

	switch r.Status {
	case models.RiskSafe:
		b.Label = "PROTECTED"
		b.Title = "All risk parameters within limits"
		b.Tone = ToneSafe
	case models.RiskWarning:
		b.Label = "CAUTION"
		b.Title = "Risk Warning"
		b.Tone = ToneWarning
		b.Explanation = "Your current trading behaviour is approaching your predefined safety limits."
		b.Advice = []string{
			"Avoid revenge trading to recover recent losses.",
			"Reduce your lot sizes on upcoming trades.",
			"Consider stepping away from the screen for 30 minutes.",
		}
	case models.RiskCritical:
		b.Label = "CRITICAL"
		b.Title = "Critical Risk Level"
		b.Tone = ToneWarning
		b.Pulse = true
		b.Explanation = "Your account is at immediate risk of breaching prop firm rules."
		b.Advice = []string{
			"Check for any unintended high-volume positions.",
			"Consider closing half of your open exposure to reduce margin stress.",
			"If the daily loss limit is hit the dashboard locks to protect the account.",
		}
	case models.RiskBreach:
		b.Label = "BREACHED"
		b.Title = "Risk rules breached"
		b.Tone = ToneDanger
	default:
		return RiskBanner{}, false
	}
	return b, true
}
