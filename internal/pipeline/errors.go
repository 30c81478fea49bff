package pipeline

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kalambet/vinq/internal/storage"
)

const (
	unavailableResponse   = "Our systems are temporarily unavailable. Please try again later."
	misunderstoodResponse = "I didn't understand that request. Please try rephrasing."
	unexpectedResponse    = "An unexpected error occurred. Please try again."
)

var connectivityKeywords = []string{"connection", "dial", "no such host", "timeout", "timed out", "deadline"}

// Translate maps an internal error to a user-facing message.
func Translate(err error) string {
	if err == nil {
		return ""
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return unavailableResponse
	}

	if errors.Is(err, storage.ErrReadOnly) {
		return misunderstoodResponse
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range connectivityKeywords {
		if strings.Contains(msg, kw) {
			return unavailableResponse
		}
	}
	if strings.Contains(msg, "sql") || strings.Contains(msg, "syntax") {
		return misunderstoodResponse
	}
	return unexpectedResponse
}
