package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","fast_model_loaded":true,"accurate_model_loaded":false}`))
	}))
	defer server.Close()

	cmd := pingCmd()
	cmd.SetContext(context.Background())

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.Flags().Set("scoring-url", server.URL))

	require.NoError(t, cmd.RunE(cmd, nil))

	assert.Contains(t, out.String(), "scoring service status: ok")
	assert.Contains(t, out.String(), "fast model loaded:     true")
	assert.Contains(t, out.String(), "accurate model loaded: false")
}
