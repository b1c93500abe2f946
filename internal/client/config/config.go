package config

import "time"

// Config holds runtime settings for the relay CLI.
type Config struct {
	ServerURL    string
	StatePath    string
	PollInterval time.Duration
}

// LoadDefaults populates c with defaults suitable for a local relay.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.StatePath = "relay.db"
	c.PollInterval = 5 * time.Second
}

// LoadConfig applies defaults, then the JSON file, then flags. Later sources
// take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
