package appServer

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ds124wfegd/imagestudio/config"
	"github.com/ds124wfegd/imagestudio/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		App:    config.AppConfig{ReapInterval: time.Minute, SessionIdleTTL: time.Minute},
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	srv := NewServer(testConfig(), http.NotFoundHandler())
	require.NoError(t, srv.Shutdown(context.Background()))

	err := srv.Run()
	assert.True(t, errors.Is(err, http.ErrServerClosed))
}

func TestRunCancelledImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, testConfig()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStudioOptions(t *testing.T) {
	opts, err := StudioOptions(config.AppConfig{DefaultFormat: "jpeg", CompressQuality: 0.5})
	require.NoError(t, err)
	assert.Equal(t, entity.FormatJPG, opts.DefaultFormat)
	assert.Equal(t, 0.92, opts.DefaultQuality)
	assert.Equal(t, 0.5, opts.CompressQuality)

	_, err = StudioOptions(config.AppConfig{DefaultFormat: "bmp"})
	assert.Error(t, err)
}

func TestNewGatewayDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewGateway(config.GatewayConfig{}))
	assert.NotNil(t, NewGateway(config.GatewayConfig{APIKey: "k"}))
}
