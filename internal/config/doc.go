// Package config provides loading and environment overlay for frontier
// runtime configuration. It exposes a Default() baseline, JSON file
// loading, and a FRONTIER_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/frontier.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
