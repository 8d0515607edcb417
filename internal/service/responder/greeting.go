package responder

import (
	"fmt"
	"strings"
	"time"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// Greeting builds the opening reminder spoken when a conversation starts.
func Greeting(p models.ClientProfile, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s, this is an automated reminder from your loan service provider. ", displayName(p))

	days := p.DaysUntilDue(now)
	switch {
	case p.DueDate.IsZero():
		fmt.Fprintf(&b, "Your EMI of %s is due soon. ", p.InstallmentText())
	case days > 0:
		fmt.Fprintf(&b, "Your EMI of %s is due in %d %s on %s. ", p.InstallmentText(), days, plural(days, "day"), p.DueDateText())
	case days == 0:
		fmt.Fprintf(&b, "Your EMI of %s is due today. ", p.InstallmentText())
	default:
		fmt.Fprintf(&b, "Your EMI of %s was due %d %s ago. ", p.InstallmentText(), -days, plural(-days, "day"))
	}

	fmt.Fprintf(&b, "Your current outstanding amount is %s. How can I assist you today?", p.OutstandingText())
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
