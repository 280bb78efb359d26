// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Settings are layered from built-in defaults, an optional CUE file
// (--config, else config.cue in the platform config directory, else
// ./nativedeps.cue), NATIVEDEPS_* environment variables and command-line
// flags, each overriding the previous. Files are validated against the
// embedded #Config schema (config_schema.cue) before they are merged.
package config
