package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/dropbox/internal/flagx"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI config file.
type JsonConfig struct {
	ServerURL    string         `json:"server_url"`
	StatePath    string         `json:"state_path"`
	PollInterval timex.Duration `json:"poll_interval"`
}

// parseJson overlays non-empty values from the config file. A missing path
// is a no-op; an unreadable or invalid file panics.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.StatePath != "" {
		cfg.StatePath = jc.StatePath
	}
	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
}
