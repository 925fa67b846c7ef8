package service

import (
	"fmt"
	"strings"

	"autodial_backend/internal/campaigns/domain"
	"autodial_backend/platform/phone"
)

// InvalidNumber reports one rejected intake line.
type InvalidNumber struct {
	Line   int    `json:"line"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// IntakeResult is the outcome of parsing a number list.
type IntakeResult struct {
	Numbers []string
	Invalid []InvalidNumber
}

// ParseNumberList parses an operator-supplied number list: one number per
// line, blank lines and comment lines skipped. Ten-digit and 1-prefixed
// NANP forms are accepted as-is; everything else must normalize to E.164.
// Lists longer than max accepted numbers are rejected outright.
func ParseNumberList(raw string, max int) (IntakeResult, error) {
	if max <= 0 {
		max = domain.MaxNumbers
	}
	var result IntakeResult

	for i, line := range strings.Split(raw, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}

		number, reason := normalizeIntakeNumber(trimmed)
		if reason != "" {
			result.Invalid = append(result.Invalid, InvalidNumber{Line: lineNo, Raw: trimmed, Reason: reason})
			continue
		}
		result.Numbers = append(result.Numbers, number)

		if len(result.Numbers) > max {
			return IntakeResult{}, fmt.Errorf("number list exceeds the %d-number campaign cap", max)
		}
	}

	return result, nil
}

// normalizeIntakeNumber maps one raw line to E.164, returning a rejection
// reason instead when it cannot.
func normalizeIntakeNumber(raw string) (string, string) {
	if phone.IsE164(raw) {
		return raw, ""
	}

	// NANP convenience forms: 5551234567 and 15551234567.
	digits := phone.Digits(raw)
	switch {
	case len(digits) == 10 && raw == digits:
		return "+1" + digits, ""
	case len(digits) == 11 && digits[0] == '1' && raw == digits:
		return "+" + digits, ""
	}

	normalized := phone.NormalizeE164(raw)
	if phone.IsE164(normalized) {
		return normalized, ""
	}
	return "", "not a dialable number"
}
