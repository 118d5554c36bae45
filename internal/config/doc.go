// Package config loads the agentflow configuration from defaults, an optional
// YAML or JSON file, and AGENTFLOW_* environment variables.
package config
