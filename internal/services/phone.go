package services

import "strings"

// NormalizePhone puts a payer-supplied MSISDN into the canonical 254XXXXXXXXX
// form the gateway accepts: whitespace and a leading "+" are stripped.
// Anything else (local 07... numbers, short numbers) is left as-is and will
// fail the gateway client's validation.
func NormalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	return strings.TrimPrefix(p, "+")
}
