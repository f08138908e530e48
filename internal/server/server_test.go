package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/bankledger/internal/config"
	"github.com/congo-pay/bankledger/internal/logging"
)

func TestNewServesJSONErrors(t *testing.T) {
	cfg := config.Config{AppName: "test", AppEnv: config.EnvDevelopment, TransferLock: config.LockLocal, Port: "0"}
	srv, err := New(cfg, nil, nil, logging.Discard())
	require.NoError(t, err)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, false, body["retryable"])
}

func TestNewRejectsProductionWithoutDatabase(t *testing.T) {
	cfg := config.Config{AppEnv: "production", TransferLock: config.LockLocal}
	_, err := New(cfg, nil, nil, logging.Discard())
	assert.Error(t, err)
}
