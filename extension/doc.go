// Package extension provides run-time registries that let the observatory
// work with user-defined test suites and their Go types (tuning parameters,
// result documents).
//
// The registries are normally modified through the public APIs under the
// root observatory package, therefore most applications do not need to
// import this package directly.
package extension
