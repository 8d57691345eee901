package scheduler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError_Cancelled(t *testing.T) {
	assert.Equal(t, ClassificationCancelled, ClassifyError(errCancelled))
	wrapped := fmt.Errorf("list businesses for Dubai page 3: %w", errCancelled)
	assert.Equal(t, ClassificationCancelled, ClassifyError(wrapped))
}

func TestClassifyError_Network(t *testing.T) {
	cases := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("context deadline exceeded (Client.Timeout exceeded while awaiting headers)"),
		errors.New("no such host: DNS lookup failed"),
		errors.New("x509: certificate signed by unknown authority"),
		errors.New("TLS handshake error: SSL routines"),
		errors.New("read: connection reset by peer"),
		errors.New("NETWORK IS UNREACHABLE"),
	}
	for _, err := range cases {
		assert.Equal(t, ClassificationNetwork, ClassifyError(err), "expected network classification for %q", err)
	}
}

func TestClassifyError_Fatal(t *testing.T) {
	cases := []error{
		errors.New("unexpected status 500 fetching https://yello.ae/company/acme"),
		errors.New("parse html: invalid character"),
		errors.New("nil pointer dereference"),
	}
	for _, err := range cases {
		assert.Equal(t, ClassificationFatal, ClassifyError(err), "expected fatal classification for %q", err)
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Equal(t, ClassificationFatal, ClassifyError(nil))
}
