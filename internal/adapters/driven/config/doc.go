// Package config loads, validates and hot-reloads the engine configuration.
//
// Values come from three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. A TOML file, parsed through koanf with a go-toml/v2 parser
//  3. Environment variables prefixed SUPPORTBOT_, with "__" separating
//     nested keys (SUPPORTBOT_RANKING__TRUST_WEIGHT=0.5)
//
// GITHUB_TOKEN and STACKOVERFLOW_KEY are honoured when the corresponding
// keys are unset.
//
// Only the ranking section is reloaded live by Watcher. Everything else
// is read once at startup.
package config
