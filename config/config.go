package config

import (
	"sync"
	"time"
)

// Config carries the process-wide settings resolved at startup. The API
// key sits behind an accessor because a Vault-backed deployment can
// rotate it while the gateway is running.
type Config struct {
	APIBaseURL     string
	PurgeChunkSize int
	FrameDelay     time.Duration
	SSLVerify      bool

	mu     sync.RWMutex
	apiKey string
}

var (
	config *Config
	once   sync.Once
)

func NewConfig(c *Config) {
	once.Do(func() {
		if c != nil {
			config = c
		} else {
			config = &Config{}
		}
	})
}

func GetConfig() *Config {
	if config != nil {
		return config
	}

	NewConfig(nil)
	return config
}

func (c *Config) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

func (c *Config) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = key
}
