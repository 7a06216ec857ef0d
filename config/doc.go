// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, upstream processor URLs, store limits, health
// check intervals, and the optional metrics listener.
package config
