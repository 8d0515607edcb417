package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/consultedge/emi-reminder-ai/internal/models"
)

func TestValidator_Profile(t *testing.T) {
	v := New()
	tests := []struct {
		name    string
		profile *models.ClientProfile
		fields  []string
	}{
		{"valid", &models.ClientProfile{Name: "Asha", Mobile: "+91 98765 43210", TotalOutstanding: 15000, InstallmentAmount: 2500}, nil},
		{"nil", nil, []string{"clientData"}},
		{"missing name", &models.ClientProfile{Name: "  "}, []string{"name"}},
		{"negative amounts", &models.ClientProfile{Name: "Asha", TotalOutstanding: -1, InstallmentAmount: -2}, []string{"totalDue", "emiAmount"}},
		{"bad mobile", &models.ClientProfile{Name: "Asha", Mobile: "call me"}, []string{"mobile"}},
		{"short mobile", &models.ClientProfile{Name: "Asha", Mobile: "123"}, []string{"mobile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Profile(tt.profile)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Profile() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Profile() error = %v, want ErrInvalid", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || len(ve.Fields) != len(tt.fields) {
				t.Fatalf("Profile() fields = %+v, want %v", ve, tt.fields)
			}
			for i, f := range tt.fields {
				if ve.Fields[i].Field != f {
					t.Errorf("field[%d] = %s, want %s", i, ve.Fields[i].Field, f)
				}
			}
		})
	}
}

func TestValidator_Text(t *testing.T) {
	v := New()
	if err := v.Text("message", "when is my emi due"); err != nil {
		t.Errorf("Text() error = %v", err)
	}
	if err := v.Text("message", " "); !errors.Is(err, ErrInvalid) {
		t.Errorf("Text(blank) error = %v, want ErrInvalid", err)
	}
	if err := v.Text("message", strings.Repeat("a", MaxTextLength+1)); !errors.Is(err, ErrInvalid) {
		t.Errorf("Text(long) error = %v, want ErrInvalid", err)
	}
}

func TestValidator_Message(t *testing.T) {
	v := New()
	tests := []struct {
		name    string
		msg     models.ClientMessage
		wantErr bool
	}{
		{"session start", models.ClientMessage{Type: models.MessageSessionStart, Profile: &models.ClientProfile{Name: "Asha"}}, false},
		{"session start without profile", models.ClientMessage{Type: models.MessageSessionStart}, true},
		{"fragment", models.ClientMessage{Type: models.MessageFragment, Text: "hello", Confidence: 0.8}, false},
		{"fragment bad confidence", models.ClientMessage{Type: models.MessageFragment, Confidence: 1.5}, true},
		{"playback ended", models.ClientMessage{Type: models.MessagePlaybackEnded, PlaybackID: "pb-1"}, false},
		{"playback ended without id", models.ClientMessage{Type: models.MessagePlaybackEnded}, true},
		{"capture error without kind", models.ClientMessage{Type: models.MessageCaptureError}, true},
		{"empty audio", models.ClientMessage{Type: models.MessageAudio}, true},
		{"stop", models.ClientMessage{Type: models.MessageConversationStop}, false},
		{"missing type", models.ClientMessage{}, true},
		{"unknown type", models.ClientMessage{Type: "dance"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidator_UnknownTypeAccepted(t *testing.T) {
	if err := New().Validate(42); err != nil {
		t.Errorf("Validate(42) error = %v", err)
	}
}
