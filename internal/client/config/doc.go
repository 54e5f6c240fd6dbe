// Package config loads runtime configuration for the diagrams CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the diagrams HTTP API
//	-f string   file the access token is kept in between runs
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// Timeouts use timex.Duration, so values can be strings like "10s" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "token_file": ".diagrams_token",
//	  "request_timeout": "10s"
//	}
package config
