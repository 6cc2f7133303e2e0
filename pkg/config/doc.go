// Package config loads configuration structs from environment variables.
//
// Structs declare their sources with `env` tags (github.com/caarlos0/env).
// A local .env file, when present, is loaded once before the first parse so
// development environments work without exporting variables manually.
//
//	type CacheConfig struct {
//		TTL   time.Duration `env:"RBAC_CACHE_TTL" envDefault:"5m"`
//		Sweep time.Duration `env:"RBAC_CACHE_SWEEP" envDefault:"1m"`
//	}
//
//	var cfg CacheConfig
//	if err := config.Load(&cfg); err != nil { ... }
package config
