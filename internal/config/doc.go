// Package config defines the application configuration and loads it
// from environment variables.
package config
