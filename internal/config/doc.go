// Package config loads service settings from the environment (AIADMIN_*
// variables) and an optional config.yaml, applies defaults and validates the
// result before any component is constructed.
package config
