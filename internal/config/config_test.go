package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr      = "localhost:8000"
		dsn       = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		redisAddr = "localhost:6379"
		searchURL = "http://localhost:5000"
		key       = "c29tZV9zZWNyZXQ="
		orig      = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name      string
		addr      string
		dsn       string
		redisAddr string
		searchURL string
		key       string
		err       bool
	}{
		{
			name:      "valid config",
			addr:      addr,
			dsn:       dsn,
			redisAddr: redisAddr,
			searchURL: searchURL,
			key:       key,
			err:       false,
		},
		{
			name:      "empty address",
			addr:      "",
			dsn:       dsn,
			redisAddr: redisAddr,
			searchURL: searchURL,
			key:       key,
			err:       true,
		},
		{
			name:      "empty DSN",
			addr:      addr,
			dsn:       "",
			redisAddr: redisAddr,
			searchURL: searchURL,
			key:       key,
			err:       true,
		},
		{
			name:      "empty signing key",
			addr:      addr,
			dsn:       dsn,
			redisAddr: redisAddr,
			searchURL: searchURL,
			key:       "",
			err:       true,
		},
		{
			name:      "invalid base64 signing key",
			addr:      addr,
			dsn:       dsn,
			redisAddr: redisAddr,
			searchURL: searchURL,
			key:       "not base64!!",
			err:       true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.addr, tc.dsn, tc.redisAddr, tc.searchURL, tc.key, orig, 0)
			if tc.err {
				assert.Error(t, err, "expected an error for invalid config")
				assert.Nil(t, cfg)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.addr, cfg.ServerAddr)
			assert.Equal(t, tc.dsn, cfg.DatabaseDSN)
			assert.NotEmpty(t, cfg.SigningKey, "expected decoded signing key")
			assert.Equal(t, defaultHistoryLimit, cfg.HistoryLimit, "expected default history limit")
		})
	}
}
