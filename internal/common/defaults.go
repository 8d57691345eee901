// Package common provides shared utilities and default configuration.
package common

import "time"

// Scheduler and adapter defaults, mirrored in NewDefaultConfig and used as
// fallbacks whenever a Job omits an optional field.
const (
	DefaultConcurrentRequests = 5
	MinConcurrentRequests     = 1
	MaxConcurrentRequests     = 20

	DefaultRequestDelay = 1.0
	MinRequestDelay     = 0.1
	MaxRequestDelay     = 10.0

	DefaultRequestTimeout = 30 * time.Second

	DefaultExportBatchSize = 100

	DefaultStaleThreshold = 15 * time.Minute
)

// DefaultUserAgents is the rotation pool used by the site adapter when
// user agent rotation is enabled.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// NetworkErrorKeywords classifies a scrape failure as transient/network
// (pausable, resumable) versus fatal. Matched case-insensitively against
// the error string.
var NetworkErrorKeywords = []string{
	"connection",
	"timeout",
	"network",
	"dns",
	"resolve",
	"unreachable",
	"refused",
	"reset",
	"ssl",
	"certificate",
}
