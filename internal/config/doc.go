// Package config defines the application configuration structure and
// loading. Configuration comes from environment variables (RECITE_ prefix)
// and an optional YAML file, validated at startup.
package config
