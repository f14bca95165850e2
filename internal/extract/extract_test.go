package extract

import (
	"testing"

	"github.com/ostlive/bookingpipe/internal/models"
)

func TestExtractEmail(t *testing.T) {
	e := NewRegexExtractor()
	info := e.Extract("you can reach me at ada.lovelace@example.com thanks", models.ClientInfo{})
	if info.Email != "ada.lovelace@example.com" {
		t.Errorf("expected email extracted, got %q", info.Email)
	}
}

func TestExtractPhoneNormalizesDigits(t *testing.T) {
	e := NewRegexExtractor()
	tests := []struct {
		input string
		want  string
	}{
		{"call me at (416) 555-1234", "4165551234"},
		{"my number is 416.555.1234", "4165551234"},
		{"+1 416 555 1234", "14165551234"},
	}
	for _, tt := range tests {
		info := e.Extract(tt.input, models.ClientInfo{})
		if info.PhoneNumber != tt.want {
			t.Errorf("Extract(%q) phone = %q, want %q", tt.input, info.PhoneNumber, tt.want)
		}
	}
}

func TestExtractNameFromCue(t *testing.T) {
	e := NewRegexExtractor()
	info := e.Extract("hi, my name is Ada Lovelace", models.ClientInfo{})
	if info.FirstName != "Ada" || info.LastName != "Lovelace" {
		t.Errorf("expected Ada Lovelace, got %q %q", info.FirstName, info.LastName)
	}
}

func TestExtractNameFromLeadingPair(t *testing.T) {
	e := NewRegexExtractor()
	info := e.Extract("Ada Lovelace", models.ClientInfo{})
	if info.FirstName != "Ada" || info.LastName != "Lovelace" {
		t.Errorf("expected Ada Lovelace, got %q %q", info.FirstName, info.LastName)
	}
}

func TestExtractNameIgnoresEmailAndPhone(t *testing.T) {
	e := NewRegexExtractor()
	info := e.Extract("ada@example.com 4165551234 Ada Lovelace", models.ClientInfo{})
	if info.FirstName != "Ada" || info.LastName != "Lovelace" {
		t.Errorf("expected name after stripping contact fields, got %q %q", info.FirstName, info.LastName)
	}
	if info.Email != "ada@example.com" {
		t.Errorf("expected email preserved, got %q", info.Email)
	}
}

func TestExtractNeverOverwritesExistingFields(t *testing.T) {
	e := NewRegexExtractor()
	existing := models.ClientInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	info := e.Extract("actually I'm Grace Hopper, grace@example.com, 4165551234", existing)

	if info.FirstName != "Ada" || info.LastName != "Lovelace" {
		t.Errorf("existing name must not be overwritten, got %q %q", info.FirstName, info.LastName)
	}
	if info.Email != "ada@example.com" {
		t.Errorf("existing email must not be overwritten, got %q", info.Email)
	}
	if info.PhoneNumber != "4165551234" {
		t.Errorf("missing field should still be filled, got %q", info.PhoneNumber)
	}
}

func TestExtractMultipleFieldsAtOnce(t *testing.T) {
	e := NewRegexExtractor()
	info := e.Extract("I'm Ada Lovelace, ada@example.com, (416) 555-1234", models.ClientInfo{})
	if !info.Complete() {
		t.Errorf("expected all fields extracted, got %+v", info)
	}
}

func TestExtractNothingFromUnrelatedText(t *testing.T) {
	e := NewRegexExtractor()
	info := e.Extract("yes", models.ClientInfo{})
	if info != (models.ClientInfo{}) {
		t.Errorf("expected no fields from %q, got %+v", "yes", info)
	}
}
