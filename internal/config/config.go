package config

import (
	"encoding/base64"
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	RedisAddr      string
	SearchURL      string
	SigningKey     []byte
	AllowedOrigins []string
	HistoryLimit   int
}

const defaultHistoryLimit = 50

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, redisAddr, searchURL, base64Secret string, allowedOrigins []string, historyLimit int) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		RedisAddr:      redisAddr,
		SearchURL:      searchURL,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		HistoryLimit:   historyLimit,
	}, nil
}
