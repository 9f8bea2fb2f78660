// SPDX-License-Identifier: EPL-2.0

// Package config builds the engine configuration from VOCAL_* environment
// variables, with a .env file as fallback. Unset or unparsable values keep
// the component defaults.
package config
