// Package config loads runtime configuration for the relay CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or DROPBOX_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the relay
//	-s string   path of the local sqlite state file
//	-i int      watch poll interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "https://relay.example",
//	  "state_path": "/home/me/.relay.db",
//	  "poll_interval": "5s"
//	}
package config
