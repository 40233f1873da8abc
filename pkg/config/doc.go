// Package config loads luxid settings: built-in defaults, then an optional
// YAML file, then LUXID_* environment variables.
package config
