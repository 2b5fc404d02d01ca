package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultOptions() Options {
	return Options{
		Host:         "0.0.0.0",
		Port:         8086,
		DataDir:      ".data",
		WebDir:       "web",
		BackendURL:   "http://localhost:8000/apps/ferlo-ponds/",
		MinZoom:      16,
		FetchTimeout: 60,
		Store:        "duckdb",
		RedisAddr:    "localhost:6379",
		RefreshCron:  "@daily",
		LogLevel:     "info",
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := defaultOptions()
	assert.NoError(t, opts.validate())

	bad := defaultOptions()
	bad.Store = "postgres"
	assert.Error(t, bad.validate())

	bad = defaultOptions()
	bad.BackendURL = "not a url"
	assert.Error(t, bad.validate())

	bad = defaultOptions()
	bad.Port = 0
	assert.Error(t, bad.validate())

	bad = defaultOptions()
	bad.Store = "redis"
	bad.RedisAddr = ""
	assert.Error(t, bad.validate())
}

func TestNewLogger_FallsBackToInfo(t *testing.T) {
	logger := newLogger("loud")
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}
