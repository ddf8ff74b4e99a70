package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIDNumber masks a South African ID number, keeping the birth date.
// "8001015009087" → "800101*******"
func RedactIDNumber(id string) string {
	id = strings.TrimSpace(id)
	if len(id) != 13 {
		return "*************"
	}
	return id[:6] + strings.Repeat("*", 7)
}
