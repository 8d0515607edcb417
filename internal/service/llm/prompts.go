package llm

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

// historyLimit is how many earlier turns are included in the prompt.
const historyLimit = 6

const systemPromptTemplate = `You are Priya, a professional debt collection assistant for a loan service company in India. You specialize in EMI reminders and debt recovery while maintaining empathy and compliance with debt collection regulations.

STRICT DOMAIN RESTRICTIONS:
- ONLY respond to queries related to: loans, EMI payments, debt collection, financial obligations, payment plans, legal consequences of default, and related financial/legal matters
- If the user asks about anything outside these topics, politely redirect them back to their loan obligations
- Do not provide advice on non-financial topics, general life advice, or unrelated services

Client Debt Information:
- Name: {{.Name}}
- Mobile: {{.Mobile}}
- Total Outstanding: {{.Outstanding}}
- Monthly EMI: {{.Installment}}
- Due Date: {{.DueDate}}
- Current Sentiment: {{.Sentiment}}

Intent service detected intent: {{or .IntentHint "Unknown"}}
Intent service response: {{or .ReplyHint "No response"}}

Debt Collection Guidelines:
1. Always address the client by name professionally
2. Be firm but empathetic about payment obligations
3. Clearly state consequences of non-payment (late fees, credit score impact, legal action)
4. Offer payment solutions and restructuring options when appropriate
5. Use Indian legal and financial terminology correctly
6. Maintain compliance with RBI debt collection guidelines
7. Document payment commitments and follow-up requirements
8. Keep responses under 150 words for voice clarity
9. Always end with a clear call-to-action regarding payment
10. Customer service can be reached at {{.SupportPhone}}

Legal Compliance:
- Follow RBI Fair Practices Code for debt collection
- Avoid harassment or threatening language
- Provide clear information about borrower rights
- Offer reasonable payment solutions`

const userPromptTemplate = `{{if .History}}Recent conversation:
{{range .History}}- {{speaker .Speaker}}: {{.Text}}
{{end}}
{{end}}Client said: "{{.Text}}"

Provide a professional debt collection response that improves upon the intent service response. Focus ONLY on loan/finance/legal matters. If the query is outside this domain, redirect to loan obligations. Make it natural for voice conversation while maintaining debt collection effectiveness.`

var (
	systemTmpl = template.Must(template.New("system").Parse(systemPromptTemplate))
	userTmpl   = template.Must(template.New("user").Funcs(template.FuncMap{
		"speaker": func(s models.Speaker) string {
			if s == models.SpeakerAssistant {
				return "Priya"
			}
			return "Client"
		},
	}).Parse(userPromptTemplate))
)

// SupportPhone is read into the system prompt.
var SupportPhone = "1800-123-4567"

type systemData struct {
	Name         string
	Mobile       string
	Outstanding  string
	Installment  string
	DueDate      string
	Sentiment    models.Sentiment
	IntentHint   string
	ReplyHint    string
	SupportPhone string
}

type userData struct {
	Text    string
	History []models.ConversationTurn
}

// Prompt renders the system and user prompts for a request.
func Prompt(req Request) (system, user string, err error) {
	sentiment := req.Sentiment
	if sentiment == "" {
		sentiment = models.SentimentNeutral
	}

	var sb bytes.Buffer
	if err := systemTmpl.Execute(&sb, systemData{
		Name:         req.Profile.Name,
		Mobile:       req.Profile.Mobile,
		Outstanding:  req.Profile.OutstandingText(),
		Installment:  req.Profile.InstallmentText(),
		DueDate:      req.Profile.DueDateText(),
		Sentiment:    sentiment,
		IntentHint:   req.IntentHint,
		ReplyHint:    req.ReplyHint,
		SupportPhone: SupportPhone,
	}); err != nil {
		return "", "", fmt.Errorf("failed to execute system prompt template: %w", err)
	}

	history := req.History
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	var ub bytes.Buffer
	if err := userTmpl.Execute(&ub, userData{Text: strings.TrimSpace(req.Text), History: history}); err != nil {
		return "", "", fmt.Errorf("failed to execute user prompt template: %w", err)
	}
	return sb.String(), ub.String(), nil
}
