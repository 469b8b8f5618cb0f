package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/fraudguard-ai/fraudguard/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScoringClientRequiresURL(t *testing.T) {
	viper.Set("scoring.url", "")

	_, err := newScoringClient()
	require.Error(t, err)

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr), "a missing URL is an operator mistake, not an internal failure")
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestOpenHistoryStoreUnknownBackend(t *testing.T) {
	viper.Set("history.backend", "bolt")
	t.Cleanup(func() { viper.Set("history.backend", "json") })

	_, err := openHistoryStore()
	require.Error(t, err)

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.Contains(t, userErr.UserMessage, "bolt")
}

func TestOpenHistoryStoreBackends(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		viper.Set("history.backend", "json")
		viper.Set("history.path", "")
	})

	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			viper.Set("history.backend", backend)
			viper.Set("history.path", filepath.Join(dir, backend, "fraud_history"))

			store, err := openHistoryStore()
			require.NoError(t, err)
			require.NoError(t, store.Close())
		})
	}
}
