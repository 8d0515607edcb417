package responder

import (
	"strings"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// Enhance adapts an intent-service reply for a collection call: it adds an
// acknowledgment that fits the caller's sentiment, a payment call-to-action when
// the reply never mentions paying, and a credit notice for negative callers.
func Enhance(reply string, p models.ClientProfile, s models.Sentiment) string {
	name := displayName(p)
	enhanced := strings.TrimSpace(reply)
	negative := s == models.SentimentNegative
	positive := s == models.SentimentPositive

	if negative && !containsFold(enhanced, "understand") {
		enhanced = "I understand this situation may be difficult, " + name +
			", but it's important we address your loan obligations. " + enhanced
	}
	if positive && !containsFold(enhanced, "appreciate") {
		enhanced = "I appreciate your cooperation, " + name + ". " + enhanced
	}
	if !containsFold(enhanced, "pay") {
		enhanced += " When can we expect your EMI payment of " + p.InstallmentText() + "?"
	}
	if negative && !containsFold(enhanced, "legal") && !containsFold(enhanced, "credit") {
		enhanced += " Please note that continued non-payment may affect your credit score" +
			" and could lead to legal action as per loan agreement terms."
	}
	return enhanced
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
