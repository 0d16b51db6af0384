// Package config manages siteclone's configuration.
//
// Configuration comes from three layers, lowest priority first:
//
//  1. Built-in defaults (NewConfig)
//  2. The .siteclone YAML file (per-site overrides: cookies, headers, depth)
//  3. CLI flags, applied by the cmd package
//
// Design decision: The Config struct is passed through the application
// via dependency injection rather than global state. Validation happens
// once, after flag parsing, so every component downstream can trust the
// values it receives.
package config
