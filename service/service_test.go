package service

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-lineprobe/metrics"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServiceDisabled(t *testing.T) {
	s := New(log.New())
	require.NoError(t, s.Start(context.Background(), Config{}))
	assert.Nil(t, s.Healthz)
	assert.Nil(t, s.Metrics)
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestHealthz(t *testing.T) {
	s := New(log.New())
	require.NoError(t, s.Start(context.Background(), Config{HealthzAddr: "127.0.0.1:0"}))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	url := "http://" + s.Healthz.Addr().String() + "/healthz"
	resp, body := get(t, url, http.Header{"Origin": []string{"http://example.com"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthzBadAddr(t *testing.T) {
	s := New(log.New())
	err := s.Start(context.Background(), Config{HealthzAddr: "not-an-addr"})
	require.Error(t, err)
	assert.Nil(t, s.Healthz)
}

func TestMetricsServer(t *testing.T) {
	metrics.RecordError("service-test")

	s := New(log.New())
	require.NoError(t, s.Start(context.Background(), Config{
		Metrics: opmetrics.CLIConfig{Enabled: true, ListenAddr: "127.0.0.1", ListenPort: 0},
	}))
	require.NotNil(t, s.Metrics)

	resp, body := get(t, "http://"+s.Metrics.Addr().String()+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "lineprobe_errors_total")

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Nil(t, s.Metrics)
	require.NoError(t, s.Shutdown(context.Background()))
}
