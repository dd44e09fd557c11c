package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fuelops/config"
	coremon "github.com/kilianp07/fuelops/core/monitoring"
)

func TestEmptyDSNIsNop(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.Equal(t, coremon.NopMonitor{}, m)
}

func TestInvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "::not a dsn"})
	assert.Error(t, err)
}

func TestCaptureWithoutTransport(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"})
	require.NoError(t, err)
	m.CaptureException(errors.New("boom"), map[string]string{"component": "gateway"})
	m.CaptureException(nil, nil)
	m.Flush(10 * time.Millisecond)
}
