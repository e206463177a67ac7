package users

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// defaultPhoneRegion is used when a number comes in without a country prefix.
const defaultPhoneRegion = "US"

// normalizePhone formats a phone number as E.164 when it parses, and returns
// the trimmed input otherwise. Profile updates should not fail on a number we
// cannot make sense of.
func normalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := phonenumbers.Parse(trimmed, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return trimmed
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}
