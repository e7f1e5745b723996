package invoker

import "strings"

// retryableSubstrings are the case-insensitive transport-error markers
// treated as transient.
var retryableSubstrings = []string{
	"timeout",
	"aborted",
	"econnrefused",
	"econnreset",
	"connection reset",
	"network",
	"unable to connect",
	"connection refused",
}

// isRetryable reports whether a transport-level error message matches
// one of the transient markers above.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
