// Package config provides configuration management for revkeep.
//
// Configuration is read from a YAML file, decoded onto the defaults,
// overridden by environment variables and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("revkeep.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention REVKEEP_SECTION_FIELD:
//
//   - REVKEEP_STORE_BACKEND overrides store.backend
//   - REVKEEP_PRUNE_CHUNK_SIZE overrides prune.chunk_size
//   - REVKEEP_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// REVKEEP_DATA_DIR moves the default database files, which otherwise live
// under $XDG_DATA_HOME/revkeep.
//
// # Deployment Settings Versus State
//
// The file holds deployment settings. Policies, ceilings, the frequency and
// the per-run quantity found in the file only seed the state store the
// first time; after that the state store is authoritative and is changed
// through the CLI.
//
// # Example Configuration
//
//	store:
//	  backend: sqlite
//	  sqlite:
//	    path: /var/lib/revkeep/content.db
//
//	prune:
//	  chunk_size: 100
//	  schedule: "0 3 * * *"
//	  frequency: every_week
//
//	ceilings:
//	  when_to_delete: {max_number: 6, unit: months}
//
//	policies:
//	  article:
//	    minimum_revisions_to_keep: 3
//	    minimum_age_to_delete: {amount: 2, unit: months}
//
// # Reloading
//
// Watcher reloads the file on change (debounced) and swaps the global
// configuration held by Initialize/GetConfig when the new file is valid.
package config
