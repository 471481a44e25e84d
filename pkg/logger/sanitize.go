package logger

import (
	"net/url"
	"strings"
)

// Query parameters that must never reach the request log.
var sensitiveParams = []string{
	"token",
	"code",
	"password",
	"refresh_token",
	"access_token",
	"secret",
}

// SanitizeQueryString reports whether a raw query string contains sensitive
// parameters and should be redacted from logs.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable query strings are redacted wholesale
		return true
	}

	for param := range values {
		lower := strings.ToLower(param)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(lower, sensitive) {
				return true
			}
		}
	}

	return false
}
