package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/dropbox/internal/flagx"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration, so both "2m" and integer nanoseconds are accepted.
type JsonConfig struct {
	HTTPAddr       string         `json:"http_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	MediaBackend   string         `json:"media_backend"`
	BoltPath       string         `json:"bolt_path"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	IdleTimeout    timex.Duration `json:"idle_timeout"`
	SweepInterval  timex.Duration `json:"sweep_interval"`
	PairingCodeTTL timex.Duration `json:"pairing_code_ttl"`
	PresignTTL     timex.Duration `json:"presign_ttl"`
	MaxUploadBytes int64          `json:"max_upload_bytes"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config or the
// DROPBOX_CONFIG environment variable. Keys absent from the file keep their
// current value. An unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.MediaBackend, c.MediaBackend)
	setString(&config.BoltPath, c.BoltPath)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.IdleTimeout.Duration > 0 {
		config.IdleTimeout = c.IdleTimeout.Duration
	}
	if c.SweepInterval.Duration > 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.PairingCodeTTL.Duration > 0 {
		config.PairingCodeTTL = c.PairingCodeTTL.Duration
	}
	if c.PresignTTL.Duration > 0 {
		config.PresignTTL = c.PresignTTL.Duration
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
