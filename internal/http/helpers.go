package http

import (
	"net/http"
	"strings"

	applog "cardspend/internal/log"
)

// requestLogs wraps the request-scoped logger.
func requestLogs(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(r.Context()))
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

// attachmentName builds "cardspend-<month>.<ext>", using "all" without a month.
func attachmentName(month, ext string) string {
	if month == "" {
		month = "all"
	}
	return "cardspend-" + month + "." + ext
}
