package app

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func configureMemoryProviders(t *testing.T) {
	t.Helper()
	viper.Set("store.provider", "memory")
	viper.Set("archive.provider", "noop")
	viper.Set("events.provider", "noop")
	viper.Set("server.enabled", false)
	t.Cleanup(viper.Reset)
}

func TestNewAppWithMemoryProviders(t *testing.T) {
	configureMemoryProviders(t)

	a, err := NewApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.GetLogger())
	require.NotNil(t, a.GetStore())
	require.NoError(t, a.GetStore().Ping(context.Background()))
}

func TestNewAppRejectsUnknownStoreProvider(t *testing.T) {
	configureMemoryProviders(t)
	viper.Set("store.provider", "cassandra")

	_, err := NewApp(context.Background())
	require.Error(t, err)
}

func TestNewAppRequiresPostgresDSN(t *testing.T) {
	configureMemoryProviders(t)
	viper.Set("store.provider", "postgres")
	viper.Set("store.postgres.dsn", "")

	_, err := NewApp(context.Background())
	require.Error(t, err)
}

func TestNewPoolWithoutCredentialSkipsCSE(t *testing.T) {
	configureMemoryProviders(t)
	viper.Set("sources.wikidata.enabled", true)
	viper.Set("sources.commons.enabled", true)
	viper.Set("sources.wikipedia.enabled", true)
	viper.Set("sources.cse.api_key", "")

	a, err := NewApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	pool, err := a.NewPool()
	require.NoError(t, err)
	require.NotNil(t, pool)
}
