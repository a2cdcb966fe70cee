package calls

import "strings"

type outcomeRule struct {
	outcome  Outcome
	keywords []string
}

// Evaluated top to bottom; the first rule with a matching keyword wins.
var outcomeRules = []outcomeRule{
	{OutcomeBooked, []string{"booked", "appointment confirmed"}},
	{OutcomeNoAvailability, []string{"no availability", "no available", "fully booked"}},
	{OutcomeInfoOnly, []string{"information", "hours", "services", "pricing"}},
	{OutcomeFallback, []string{"couldn't help", "transfer", "unable"}},
}

// Classify maps a call summary to an outcome. An empty summary is a hangup.
func Classify(summary string) Outcome {
	lower := strings.ToLower(summary)
	if strings.TrimSpace(lower) == "" {
		return OutcomeHangup
	}

	for _, r := range outcomeRules {
		text := lower
		if r.outcome == OutcomeBooked {
			// "fully booked" is availability language, not a booking.
			text = strings.ReplaceAll(text, "fully booked", "")
		}
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.outcome
			}
		}
	}
	return OutcomeHangup
}
