package retry

import (
	"os"
	"strconv"
	"time"
)

// FromEnv returns [Default] adjusted by RETRY_MAX_ATTEMPTS and
// RETRY_BASE_DELAY (a Go duration such as "500ms"). Unparseable or
// non-positive values are ignored.
func FromEnv() *Policy {
	p := Default()
	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxAttempts = n
		}
	}
	if v := os.Getenv("RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			p.BaseDelay = d
		}
	}
	return p
}
