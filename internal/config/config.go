package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TASKSTREAM"

type Config struct {
	ServerAddr        string
	DatabaseDSN       string
	SigningKey        []byte
	PublishToken      string
	AllowedOrigins    []string
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	PresenceGrace     time.Duration
	SendQueueSize     int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "localhost:8000")
	v.SetDefault("handshake-timeout", 10*time.Second)
	v.SetDefault("heartbeat-interval", 15*time.Second)
	v.SetDefault("heartbeat-timeout", 60*time.Second)
	v.SetDefault("presence-grace", 5*time.Second)
	v.SetDefault("send-queue-size", 256)
}

// Load builds a Config from the given viper instance, applying defaults
// and TASKSTREAM_* environment overrides.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if v.GetString("dsn") == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if v.GetString("signing-key") == "" {
		return nil, fmt.Errorf("signing key cannot be empty")
	}
	if v.GetString("publish-token") == "" {
		return nil, fmt.Errorf("publish token cannot be empty")
	}

	signingKey, err := base64.StdEncoding.DecodeString(v.GetString("signing-key"))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}

	cfg := &Config{
		ServerAddr:        v.GetString("addr"),
		DatabaseDSN:       v.GetString("dsn"),
		SigningKey:        signingKey,
		PublishToken:      v.GetString("publish-token"),
		AllowedOrigins:    v.GetStringSlice("allowed-origins"),
		HandshakeTimeout:  v.GetDuration("handshake-timeout"),
		HeartbeatInterval: v.GetDuration("heartbeat-interval"),
		HeartbeatTimeout:  v.GetDuration("heartbeat-timeout"),
		PresenceGrace:     v.GetDuration("presence-grace"),
		SendQueueSize:     v.GetInt("send-queue-size"),
	}

	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		return nil, fmt.Errorf("heartbeat timeout must exceed heartbeat interval")
	}
	if cfg.SendQueueSize <= 0 {
		return nil, fmt.Errorf("send queue size must be positive")
	}

	return cfg, nil
}
