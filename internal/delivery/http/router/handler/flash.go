package handler

import (
	"encoding/base64"
	"time"
)

const flashTTL = time.Minute

// flashValue encodes a message so it is a valid cookie value.
func flashValue(message string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(message))
}

func readFlash(value string) string {
	if value == "" {
		return ""
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return ""
	}

	return string(decoded)
}

func flashExpiry() time.Time {
	return time.Now().Add(flashTTL)
}
