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

// RedactPhone masks a phone number, keeping only the last two digits.
// "090-1234-5678" → "***78"
func RedactPhone(phone string) string {
	if len(phone) <= 2 {
		return "***"
	}
	return "***" + phone[len(phone)-2:]
}

// RedactLineID masks a LINE user ID, keeping the leading "U" prefix and
// first three characters. "U4af4980629..." → "U4af***"
func RedactLineID(id string) string {
	if len(id) <= 4 {
		return "***"
	}
	return id[:4] + "***"
}
