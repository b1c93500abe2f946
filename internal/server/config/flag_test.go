package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "memory", "-m", "bolt", "-f", "/tmp/m.db",
			"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
			"-i", "30", "-w", "5", "-l", "debug",
		},
			expected: &Config{
				HTTPAddr:       "127.0.0.1:9090",
				DatabaseDSN:    "memory",
				MediaBackend:   "bolt",
				BoltPath:       "/tmp/m.db",
				S3RootUser:     "user",
				S3RootPassword: "password",
				S3Bucket:       "bucket",
				S3Region:       "us-west-1",
				S3BaseEndpoint: "http://endpoint",
				IdleTimeout:    30 * time.Second,
				SweepInterval:  5 * time.Second,
				LogLevel:       "debug",
			}},
		{name: "unrelated flags are ignored", args: []string{"cmd", "-c", "cfg.json", "-x", "1", "-a", ":1"},
			expected: &Config{HTTPAddr: ":1"}},
		{name: "durations untouched without flags", args: []string{"cmd", "-a", ":2"},
			expected: &Config{HTTPAddr: ":2"}},
		{name: "non-numeric idle timeout", args: []string{"cmd", "-i", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestParseFlags_KeepsSubSecondDurations(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"cmd", "-a", ":1"}
	cfg := &Config{SweepInterval: 500 * time.Millisecond, IdleTimeout: 150500 * time.Millisecond}
	parseFlags(cfg)
	assert.Equal(t, 500*time.Millisecond, cfg.SweepInterval)
	assert.Equal(t, 150500*time.Millisecond, cfg.IdleTimeout)

	os.Args = []string{"cmd", "-w", "0"}
	parseFlags(cfg)
	assert.Zero(t, cfg.SweepInterval, "explicit flag wins")
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig_JSONSubSecondDurations(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("DROPBOX_CONFIG", "")

	path := writeTempJSON(t, "", "", map[string]any{
		"sweep_interval": "500ms",
		"idle_timeout":   "2m30.5s",
	})
	os.Args = []string{"testbin", "-c", path}

	cfg := LoadConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.SweepInterval)
	assert.Equal(t, 2*time.Minute+30500*time.Millisecond, cfg.IdleTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	var c Config
	c.LoadDefaults()
	require.NoError(t, c.Validate())

	c.PairingCodeTTL = 0
	assert.ErrorContains(t, c.Validate(), "pairing code TTL")
}
