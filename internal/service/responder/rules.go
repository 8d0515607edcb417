package responder

import (
	"fmt"
	"strings"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// DefaultSupportPhone is the customer service number read out in replies.
const DefaultSupportPhone = "1800-123-4567"

// Category is the keyword class of an utterance.
type Category string

const (
	CategoryPayment    Category = "payment"
	CategoryBalance    Category = "balance"
	CategoryEMI        Category = "emi"
	CategoryExtension  Category = "extension"
	CategoryDifficulty Category = "difficulty"
	CategoryHelp       Category = "help"
	CategoryFarewell   Category = "farewell"
	CategoryGeneral    Category = "general"
)

type keywordRule struct {
	category Category
	keywords []string
}

// keywordRules is checked in order; the first matching category wins.
// Bare "pay" is not a payment keyword so "I cannot pay" reaches the difficulty rule.
var keywordRules = []keywordRule{
	{CategoryPayment, []string{"paid", "payment", "will pay", "i'll pay", "paying"}},
	{CategoryBalance, []string{"balance", "outstanding", "due amount"}},
	{CategoryEMI, []string{"emi", "installment", "instalment"}},
	{CategoryExtension, []string{"extension", "extend", "delay"}},
	{CategoryDifficulty, []string{"difficult", "problem", "cannot", "can't", "unable"}},
	{CategoryHelp, []string{"help", "support"}},
	{CategoryFarewell, []string{"bye", "goodbye", "thank you"}},
}

// Classify returns the keyword category of text.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, r := range keywordRules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}

// RuleResponder is the terminal fallback tier. It cannot fail.
type RuleResponder struct {
	SupportPhone string
}

// NewRuleResponder creates a rule responder. An empty phone uses DefaultSupportPhone.
func NewRuleResponder(supportPhone string) *RuleResponder {
	if supportPhone == "" {
		supportPhone = DefaultSupportPhone
	}
	return &RuleResponder{SupportPhone: supportPhone}
}

// Reply formats the canned reply for text's category.
func (r *RuleResponder) Reply(text string, p models.ClientProfile, s models.Sentiment) string {
	name := displayName(p)
	phone := r.SupportPhone
	positive := s == models.SentimentPositive
	negative := s == models.SentimentNegative

	switch Classify(text) {
	case CategoryPayment:
		if positive {
			return fmt.Sprintf("Wonderful! Thank you for confirming your payment, %s. I'm glad to hear you've taken care of this. "+
				"Please ensure the payment is processed before the due date. Is there anything else I can help you with regarding your loan?", name)
		}
		return fmt.Sprintf("Thank you for confirming your payment, %s. Please ensure the payment is processed before the due date. "+
			"Is there anything else I can help you with regarding your loan?", name)

	case CategoryBalance:
		return fmt.Sprintf("%s, your current outstanding loan amount is %s. Your next EMI of %s is due on %s.",
			name, p.OutstandingText(), p.InstallmentText(), p.DueDateText())

	case CategoryEMI:
		return fmt.Sprintf("%s, your monthly EMI amount is %s. The due date for your next payment is %s.",
			name, p.InstallmentText(), p.DueDateText())

	case CategoryExtension:
		if negative {
			return fmt.Sprintf("I understand you're facing difficulties, %s. Don't worry, we're here to help. "+
				"Please contact our customer service at %s for payment extension requests. "+
				"They will work with you to find a suitable arrangement.", name, phone)
		}
		return fmt.Sprintf("I understand you're requesting an extension, %s. Please contact our customer service at %s "+
			"for payment extension requests. They will be able to assist you with the necessary arrangements.", name, phone)

	case CategoryDifficulty:
		return fmt.Sprintf("I understand you're facing some challenges, %s. We want to help you through this. "+
			"Please contact our customer service at %s immediately. They have various assistance programs "+
			"and can work out a payment plan that suits your situation.", name, phone)

	case CategoryHelp:
		return fmt.Sprintf("I'm here to help you, %s. I can provide information about your loan balance, EMI amount, "+
			"due dates, and payment confirmations. For other queries, please contact our customer service at %s.", name, phone)

	case CategoryFarewell:
		if positive {
			return fmt.Sprintf("It was my pleasure helping you today, %s! Please remember to make your EMI payment of %s by %s. Have a wonderful day!",
				name, p.InstallmentText(), p.DueDateText())
		}
		return fmt.Sprintf("Thank you for your time, %s. Please remember to make your EMI payment of %s by %s. Have a great day!",
			name, p.InstallmentText(), p.DueDateText())
	}

	if negative {
		return fmt.Sprintf("I understand your concern, %s, and I want to help resolve this for you. "+
			"For detailed assistance with your loan account, please contact our customer service at %s. "+
			"They're specially trained to handle your specific situation. "+
			"Is there anything specific about your EMI or payment that I can help clarify right now?", name, phone)
	}
	return fmt.Sprintf("I understand your concern, %s. For detailed assistance with your loan account, "+
		"please contact our customer service at %s. Is there anything specific about your EMI or payment that I can help clarify?", name, phone)
}

func displayName(p models.ClientProfile) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "valued customer"
}
