package scheduler

import (
	"errors"
	"strings"

	"github.com/joshfom/yello-crawl/internal/common"
)

// Classification is the outcome of classifying a supervisor-loop error.
type Classification int

const (
	// ClassificationFatal means the job should transition to failed.
	ClassificationFatal Classification = iota
	// ClassificationNetwork means the job should transition to
	// paused(network_error) and is resumable.
	ClassificationNetwork
	// ClassificationCancelled means the error is the cooperative
	// cancellation signal, not a real failure.
	ClassificationCancelled
)

// errCancelled is returned by suspension points inside the supervisor loop
// when the caller's context has been cancelled (pause or cancel request).
var errCancelled = errors.New("supervisor: cooperative stop requested")

// ClassifyError implements the network/fatal split of spec §4.3.3: a
// case-insensitive substring match against a fixed keyword list, not a
// try/catch cascade.
func ClassifyError(err error) Classification {
	if err == nil {
		return ClassificationFatal
	}
	if errors.Is(err, errCancelled) {
		return ClassificationCancelled
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range common.NetworkErrorKeywords {
		if strings.Contains(msg, keyword) {
			return ClassificationNetwork
		}
	}
	return ClassificationFatal
}
