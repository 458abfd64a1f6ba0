package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {
	InitConfig()

	require.Equal(t, 4, viper.GetInt("harvest.workers"))
	require.Equal(t, 200, viper.GetInt("validator.min_dimension"))
	require.Equal(t, 1024, viper.GetInt("validator.max_long_edge"))
	require.Equal(t, "memory", viper.GetString("store.provider"))
	require.Equal(t, "noop", viper.GetString("archive.provider"))
	require.Equal(t, "figure-coverage-completed", viper.GetString("events.topic"))
	require.True(t, viper.GetBool("sources.wikidata.enabled"))
	require.Empty(t, viper.GetString("sources.cse.api_key"), "commercial search is opt-in")
}
