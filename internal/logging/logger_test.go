package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDevelopment(t *testing.T) {
	t.Parallel()
	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.True(t, logger.Core().Enabled(-1), "development logger enables debug")
}

func TestNewProduction(t *testing.T) {
	t.Parallel()
	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.False(t, logger.Core().Enabled(-1), "production logger suppresses debug")
}

func TestInitLoggerSetsGlobal(t *testing.T) {
	InitLogger(false)
	require.NotNil(t, L)
	L.Info("logger initialized")
}
