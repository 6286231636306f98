// Package config handles configuration loading for engramctl.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation; every field can also be overridden on the
// engramctl command line, and the shared library never touches config files.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	synth:
//	  api_key: "${OPENAI_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	synth:
//	  timeout: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Store:
//
//	store:
//	  path: "~/memory.eng"       # store file, created by engramctl create
//	  capacity_bytes: 0          # 0 = unlimited
//	  chunk_chars: 2048          # 0 keeps the engine default
//
// Answer synthesis (used by engramctl ask when enabled):
//
//	synth:
//	  enabled: false
//	  api_key: "${OPENAI_API_KEY}"
//	  base_url: ""               # empty = api.openai.com
//	  model: ""                  # empty = package default
//	  timeout: "30s"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("engram.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
