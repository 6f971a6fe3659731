package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	var (
		dsn   = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key   = "c29tZV9zZWNyZXQ="
		token = "publish-secret"
	)

	tcases := []struct {
		name  string
		dsn   string
		key   string
		token string
		extra map[string]any
		err   bool
	}{
		{
			name:  "valid config",
			dsn:   dsn,
			key:   key,
			token: token,
			err:   false,
		},
		{
			name:  "empty DSN",
			dsn:   "",
			key:   key,
			token: token,
			err:   true,
		},
		{
			name:  "empty signing key",
			dsn:   dsn,
			key:   "",
			token: token,
			err:   true,
		},
		{
			name:  "invalid base64 signing key",
			dsn:   dsn,
			key:   "not-base64!!!",
			token: token,
			err:   true,
		},
		{
			name:  "empty publish token",
			dsn:   dsn,
			key:   key,
			token: "",
			err:   true,
		},
		{
			name:  "heartbeat timeout below interval",
			dsn:   dsn,
			key:   key,
			token: token,
			extra: map[string]any{"heartbeat-timeout": time.Second},
			err:   true,
		},
		{
			name:  "non-positive queue size",
			dsn:   dsn,
			key:   key,
			token: token,
			extra: map[string]any{"send-queue-size": 0},
			err:   true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			v.Set("dsn", tc.dsn)
			v.Set("signing-key", tc.key)
			v.Set("publish-token", tc.token)
			for key, value := range tc.extra {
				v.Set(key, value)
			}

			cfg, err := Load(v)
			if tc.err {
				assert.Error(t, err, "expected error loading config")
				assert.Nil(t, cfg, "expected nil config on error")
				return
			}

			assert.NoError(t, err, "expected no error loading config")
			assert.Equal(t, tc.dsn, cfg.DatabaseDSN, "expected DSN to be set")
			assert.Equal(t, []byte("some_secret"), cfg.SigningKey, "expected decoded signing key")
			assert.Equal(t, tc.token, cfg.PublishToken, "expected publish token to be set")
			assert.Equal(t, "localhost:8000", cfg.ServerAddr, "expected default server address")
			assert.Equal(t, 60*time.Second, cfg.HeartbeatTimeout, "expected default heartbeat timeout")
			assert.Equal(t, 256, cfg.SendQueueSize, "expected default queue size")
		})
	}
}
