// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with caarlos0/env tags:
//
//	type Config struct {
//		MaxDepth int `env:"ACL_MAX_DEPTH" envDefault:"64"`
//	}
//
// Load parses a type once and caches it for the process lifetime. Parse
// always reads the current environment. LoadEnv merges dotenv files into the
// environment before either is called.
package config
