// SPDX-License-Identifier: MPL-2.0

// Package unit defines the declarative description of a native dependency
// (a Unit) and the ordered Catalog of units a run builds.
//
// A catalog is loaded once, either from the embedded default (the TensorFlow
// Lite stack) or from a user file in CUE or TOML, and is never mutated
// afterwards. Loading validates each unit in isolation; ordering between
// units is checked by the orchestrator before anything runs.
package unit
