// Package extract pulls contact fields out of free-form chat text.
//
// The default extractor is regex-based and deterministic. An LLM-backed
// extractor can be layered on top (see internal/genai); both satisfy the
// same interface so the booking flow does not care which is wired in.
package extract

import (
	"regexp"
	"strings"

	"github.com/ostlive/bookingpipe/internal/models"
)

// FieldExtractor extracts contact fields from one user message. Fields
// already present in existing must never be overwritten; the result is the
// merge of existing with anything newly found.
type FieldExtractor interface {
	Extract(input string, existing models.ClientInfo) models.ClientInfo
}

var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern    = regexp.MustCompile(`\b(\+?1?[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	nameCuePattern  = regexp.MustCompile(`(?i)(?:name is|i'm|i am|call me)\s+([A-Za-z]+)(?:\s+([A-Za-z]+))?`)
	leadPairPattern = regexp.MustCompile(`^([A-Za-z]+)\s+([A-Za-z]+)`)
	wordPairPattern = regexp.MustCompile(`\b([A-Za-z]+)\s+([A-Za-z]+)\b`)
	nonDigitPattern = regexp.MustCompile(`\D`)
)

// RegexExtractor extracts email, phone and name with fixed patterns.
type RegexExtractor struct{}

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract scans input for an email address, a North American phone number
// and a first/last name pair. Phone numbers are normalized to digits only.
func (e *RegexExtractor) Extract(input string, existing models.ClientInfo) models.ClientInfo {
	info := existing

	if info.Email == "" {
		if m := emailPattern.FindString(input); m != "" {
			info.Email = m
		}
	}

	if info.PhoneNumber == "" {
		if m := phonePattern.FindString(input); m != "" {
			info.PhoneNumber = nonDigitPattern.ReplaceAllString(m, "")
		}
	}

	if info.FirstName == "" || info.LastName == "" {
		first, last := extractName(input)
		if info.FirstName == "" {
			info.FirstName = first
		}
		if info.LastName == "" {
			info.LastName = last
		}
	}

	return info
}

// extractName tries a spoken cue ("my name is X Y"), then a leading word
// pair, then any word pair once emails and phone numbers are stripped out.
func extractName(input string) (first, last string) {
	if m := nameCuePattern.FindStringSubmatch(input); m != nil {
		return m[1], m[2]
	}
	if m := leadPairPattern.FindStringSubmatch(input); m != nil {
		return m[1], m[2]
	}
	clean := emailPattern.ReplaceAllString(input, "")
	clean = phonePattern.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)
	if m := wordPairPattern.FindStringSubmatch(clean); m != nil {
		return m[1], m[2]
	}
	return "", ""
}
